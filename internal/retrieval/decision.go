package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/voiceline-ai/internal/llm"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// Strategy is the response strategy for one utterance.
type Strategy string

const (
	StrategyDirectCanned        Strategy = "direct_canned"
	StrategyConversationContext Strategy = "conversation_context"
	StrategyDocumentRetrieval   Strategy = "document_retrieval"
)

// Decision is produced fresh per utterance and never cached across turns;
// the topic can shift every turn.
type Decision struct {
	NeedsDocuments bool
	Strategy       Strategy
	Confidence     float64
}

const decisionPrompt = `You are deciding how a voice assistant should answer the caller's latest message. Pick ONE strategy:

- direct_canned: pure pleasantry or filler ("thanks", "okay", "goodbye") that needs no real answer
- conversation_context: the conversation so far already contains what is needed (follow-ups, clarifications, anything already discussed)
- document_retrieval: a substantive question about services, pricing, policies, or facts not yet discussed

Prefer conversation_context when the topic continues from earlier turns. Retrieval adds latency; only choose document_retrieval when the answer truly is not in the conversation.

Recent conversation:
%s

Caller's latest message: %s

Respond with JSON only: {"strategy": "<name>", "confidence": <0.0-1.0>}`

// DecisionEngine classifies each utterance into a response strategy using a
// small model call. It fails open: any error yields conversation_context,
// never the expensive retrieval path and never a canned filler.
type DecisionEngine struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

// NewDecisionEngine creates the engine.
func NewDecisionEngine(client llm.Client, model string, logger *logging.Logger) *DecisionEngine {
	if client == nil {
		panic("retrieval: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DecisionEngine{client: client, model: model, logger: logger}
}

// Decide returns the strategy for the utterance given recent history.
func (e *DecisionEngine) Decide(ctx context.Context, utterance string, history []llm.ChatMessage) Decision {
	fallback := Decision{Strategy: StrategyConversationContext, Confidence: 0}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Decision{Strategy: StrategyDirectCanned, Confidence: 1}
	}

	prompt := fmt.Sprintf(decisionPrompt, renderHistory(history), utterance)
	resp, err := e.client.Complete(ctx, llm.Request{
		Model:     e.model,
		Messages:  []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
		MaxTokens: 60,
	})
	if err != nil {
		e.logger.Warn("retrieval: decision model failed, defaulting to conversation context", "error", err)
		return fallback
	}

	var parsed struct {
		Strategy   string  `json:"strategy"`
		Confidence float64 `json:"confidence"`
	}
	content := extractJSON(resp.Text)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		e.logger.Warn("retrieval: unparseable decision", "raw", resp.Text)
		return fallback
	}

	switch Strategy(parsed.Strategy) {
	case StrategyDirectCanned:
		return Decision{Strategy: StrategyDirectCanned, Confidence: parsed.Confidence}
	case StrategyConversationContext:
		return Decision{Strategy: StrategyConversationContext, Confidence: parsed.Confidence}
	case StrategyDocumentRetrieval:
		return Decision{NeedsDocuments: true, Strategy: StrategyDocumentRetrieval, Confidence: parsed.Confidence}
	default:
		e.logger.Warn("retrieval: unknown decision strategy", "strategy", parsed.Strategy)
		return fallback
	}
}

// renderHistory formats the last few turns for the decision prompt.
func renderHistory(history []llm.ChatMessage) string {
	const maxTurns = 8
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	if len(history) == 0 {
		return "(call just started)"
	}
	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// extractJSON pulls the first JSON object out of model output that may be
// wrapped in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
