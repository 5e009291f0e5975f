// Package routing selects which agent handles the caller's next turn.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/voiceline-ai/internal/llm"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// MasterAgent is the sentinel the routing model uses for the general-purpose
// agent. Resolved routes never carry it; master is the empty agent ID.
const MasterAgent = "MASTER"

// Candidate is one specialized agent the router may hand the call to.
type Candidate struct {
	ID          string
	Name        string
	Description string
}

const routePrompt = `You route a phone call to the best agent. Agents:

%s

The caller is currently with: %s

Caller's latest message: %s

Stay with the current agent unless the message clearly belongs to a different agent's specialty. Ambiguous or general messages stay put.

Respond with JSON only: {"agent": "<agent id, or MASTER for the general agent>"}`

// Router classifies each utterance against the agent roster. Any failure or
// ambiguity keeps the call where it is; a mid-sentence agent swap is worse
// than a slightly off-topic answer.
type Router struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

// NewRouter creates the router.
func NewRouter(client llm.Client, model string, logger *logging.Logger) *Router {
	if client == nil {
		panic("routing: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{client: client, model: model, logger: logger}
}

// Route returns the agent ID that should handle the turn. Empty string means
// the master agent. With no specialized agents the answer is always master.
func (r *Router) Route(ctx context.Context, utterance, currentAgentID string, roster []Candidate) string {
	if len(roster) == 0 {
		return ""
	}
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return currentAgentID
	}

	resp, err := r.client.Complete(ctx, llm.Request{
		Model: r.model,
		Messages: []llm.ChatMessage{{
			Role:    llm.ChatRoleUser,
			Content: fmt.Sprintf(routePrompt, renderRoster(roster), currentLabel(currentAgentID), utterance),
		}},
		MaxTokens: 40,
	})
	if err != nil {
		r.logger.Warn("routing: model failed, keeping current agent", "error", err)
		return currentAgentID
	}

	var parsed struct {
		Agent string `json:"agent"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		r.logger.Warn("routing: unparseable route", "raw", resp.Text)
		return currentAgentID
	}

	choice := strings.TrimSpace(parsed.Agent)
	if choice == "" {
		return currentAgentID
	}
	if strings.EqualFold(choice, MasterAgent) {
		return ""
	}
	if id, ok := matchCandidate(choice, roster); ok {
		return id
	}
	r.logger.Warn("routing: model named unknown agent, keeping current", "choice", choice)
	return currentAgentID
}

// matchCandidate resolves a model-produced name to a roster entry: exact ID,
// exact name, then unique prefix, all case-insensitive.
func matchCandidate(choice string, roster []Candidate) (string, bool) {
	for _, c := range roster {
		if strings.EqualFold(choice, c.ID) || strings.EqualFold(choice, c.Name) {
			return c.ID, true
		}
	}
	lower := strings.ToLower(choice)
	matched := ""
	for _, c := range roster {
		if strings.HasPrefix(strings.ToLower(c.ID), lower) || strings.HasPrefix(strings.ToLower(c.Name), lower) {
			if matched != "" && matched != c.ID {
				return "", false // ambiguous prefix
			}
			matched = c.ID
		}
	}
	if matched != "" {
		return matched, true
	}
	return "", false
}

func renderRoster(roster []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s: general-purpose agent, handles anything without a specialist\n", MasterAgent)
	for _, c := range roster {
		fmt.Fprintf(&b, "- %s (%s): %s\n", c.ID, c.Name, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func currentLabel(currentAgentID string) string {
	if currentAgentID == "" {
		return MasterAgent
	}
	return currentAgentID
}

func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
