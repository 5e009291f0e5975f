// Package orchestrator runs the per-call pipeline: audio in, voice activity
// detection, transcription, routing, retrieval, response generation, and
// synthesized speech out.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/voiceline-ai/internal/agents"
	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/internal/llm"
	"github.com/wolfman30/voiceline-ai/internal/observability/metrics"
	"github.com/wolfman30/voiceline-ai/internal/retrieval"
	"github.com/wolfman30/voiceline-ai/internal/routing"
	"github.com/wolfman30/voiceline-ai/internal/stt"
	"github.com/wolfman30/voiceline-ai/internal/telephony"
	"github.com/wolfman30/voiceline-ai/internal/tts"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// agentDirectory loads the master agent and the specialized roster.
type agentDirectory interface {
	MasterByCompany(ctx context.Context, companyID string) (*agents.Agent, error)
	RosterByCompany(ctx context.Context, companyID string) ([]agents.Agent, error)
}

// intentRouter picks the agent for an utterance.
type intentRouter interface {
	Route(ctx context.Context, utterance, currentAgentID string, roster []routing.Candidate) string
}

// strategyEngine classifies how an utterance should be answered.
type strategyEngine interface {
	Decide(ctx context.Context, utterance string, history []llm.ChatMessage) retrieval.Decision
}

// contextRetriever fetches knowledge under a latency budget.
type contextRetriever interface {
	Retrieve(ctx context.Context, companyID, agentID, query string) ([]retrieval.Snippet, error)
	AssembleContext(snippets []retrieval.Snippet) string
}

// toolRunner executes model-issued tool calls.
type toolRunner interface {
	Execute(ctx context.Context, tc llm.ToolCall, sess *call.Session) string
	ForgetCall(callID string)
}

// callStore mirrors call state to Redis for operator visibility. Optional.
type callStore interface {
	SaveState(ctx context.Context, state *call.State) error
	RecordTurn(ctx context.Context, callID string) error
	MarkEnded(ctx context.Context, callID string) error
	AppendTranscript(ctx context.Context, callID string, entry call.TranscriptEntry) error
}

// Config carries the pipeline tunables.
type Config struct {
	FrameDurationMS    int
	SampleRate         int
	VADEnergyThreshold float64
	VADDebounceFrames  int
	SilenceGap         time.Duration
	STTConnectTimeout  time.Duration
	TurnBudget         time.Duration
	Model              string
	Tools              []llm.ToolDefinition
}

func (c *Config) applyDefaults() {
	if c.FrameDurationMS <= 0 {
		c.FrameDurationMS = 20
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 8000
	}
	if c.SilenceGap <= 0 {
		c.SilenceGap = 1500 * time.Millisecond
	}
	if c.STTConnectTimeout <= 0 {
		c.STTConnectTimeout = 5 * time.Second
	}
	if c.TurnBudget <= 0 {
		c.TurnBudget = 6 * time.Second
	}
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Registry  *call.Registry
	Store     callStore // optional
	Agents    agentDirectory
	STT       stt.Provider
	TTS       tts.Provider
	Router    intentRouter
	Decider   strategyEngine
	Retriever contextRetriever
	LLM       llm.StreamingClient
	Executor  toolRunner
	Metrics   *metrics.CallMetrics
	Logger    *logging.Logger
}

// Orchestrator owns process-wide collaborators and spawns one Pipeline per
// call. It implements the telephony CallHandler.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	tracer trace.Tracer
	logger *logging.Logger
}

// New creates the orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Registry == nil {
		panic("orchestrator: registry cannot be nil")
	}
	if deps.Agents == nil {
		panic("orchestrator: agent directory cannot be nil")
	}
	if deps.STT == nil || deps.TTS == nil {
		panic("orchestrator: speech providers cannot be nil")
	}
	if deps.Router == nil || deps.Decider == nil || deps.Retriever == nil {
		panic("orchestrator: routing and retrieval collaborators cannot be nil")
	}
	if deps.LLM == nil {
		panic("orchestrator: llm client cannot be nil")
	}
	if deps.Executor == nil {
		panic("orchestrator: executor cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		tracer: otel.Tracer("voiceline/orchestrator"),
		logger: deps.Logger,
	}
}

// CallStarted sets up the per-call pipeline. Implements telephony.CallHandler.
func (o *Orchestrator) CallStarted(ctx context.Context, callID, companyID, callerNumber string, stream telephony.Stream) (telephony.AudioSink, error) {
	if callID == "" {
		return nil, fmt.Errorf("orchestrator: call id required")
	}

	sess := call.NewSession(callID, companyID, callerNumber)
	p, err := o.newPipeline(sess, stream)
	if err != nil {
		sess.End()
		return nil, err
	}

	o.deps.Registry.Add(sess)
	o.deps.Metrics.CallStarted()
	if o.deps.Store != nil {
		if serr := o.deps.Store.SaveState(context.WithoutCancel(ctx), &call.State{
			CallID:       callID,
			CompanyID:    companyID,
			CallerNumber: callerNumber,
			Status:       call.StatusActive,
			StartedAt:    sess.StartedAt,
		}); serr != nil {
			o.logger.Warn("orchestrator: call state save failed", "call_id", callID, "error", serr)
		}
	}

	o.logger.Info("orchestrator: call started",
		"call_id", callID,
		"company_id", companyID,
		"caller", call.MaskNumber(callerNumber),
	)
	p.start()
	return p, nil
}

// endCall tears down everything owned by the call.
func (o *Orchestrator) endCall(callID string) {
	o.deps.Registry.Remove(callID)
	o.deps.Executor.ForgetCall(callID)
	o.deps.Metrics.CallEnded()
	if o.deps.Store != nil {
		if err := o.deps.Store.MarkEnded(context.Background(), callID); err != nil {
			o.logger.Warn("orchestrator: mark ended failed", "call_id", callID, "error", err)
		}
	}
	o.logger.Info("orchestrator: call ended", "call_id", callID)
}
