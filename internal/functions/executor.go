package functions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/internal/llm"
	"github.com/wolfman30/voiceline-ai/internal/observability/metrics"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

const (
	notImplementedText = "I'm sorry, I can't do that just yet."
	failedText         = "I'm sorry, something went wrong on my end while I was doing that."
)

// Executor runs tool calls through the registry. Every outcome is a spoken
// sentence: unregistered functions and handler failures degrade to an
// apology instead of surfacing an error into the response stream.
type Executor struct {
	registry *Registry
	metrics  *metrics.CallMetrics
	logger   *logging.Logger

	mu   sync.Mutex
	seen map[string]string // callID/toolCallID -> spoken result
}

// NewExecutor creates an executor over the registry.
func NewExecutor(registry *Registry, m *metrics.CallMetrics, logger *logging.Logger) *Executor {
	if registry == nil {
		panic("functions: registry cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		registry: registry,
		metrics:  m,
		logger:   logger,
		seen:     make(map[string]string),
	}
}

// Execute runs one model-issued tool call and returns the text to speak.
// A tool call ID already executed for this call returns the original result
// without running the handler again.
func (e *Executor) Execute(ctx context.Context, tc llm.ToolCall, sess *call.Session) string {
	key := sess.ID + "/" + tc.ID
	if tc.ID != "" {
		e.mu.Lock()
		if result, ok := e.seen[key]; ok {
			e.mu.Unlock()
			return result
		}
		e.mu.Unlock()
	}

	result := e.run(ctx, tc, sess)

	if tc.ID != "" {
		e.mu.Lock()
		e.seen[key] = result
		e.mu.Unlock()
	}
	return result
}

func (e *Executor) run(ctx context.Context, tc llm.ToolCall, sess *call.Session) string {
	handler, ok := e.registry.Lookup(tc.Name)
	if !ok {
		e.logger.Warn("functions: unregistered function requested",
			"function", tc.Name, "call_id", sess.ID)
		e.metrics.ObserveFunctionCall(tc.Name, "not_implemented")
		return notImplementedText
	}

	args := map[string]any{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			e.logger.Warn("functions: unparseable arguments",
				"function", tc.Name, "call_id", sess.ID, "error", err)
			e.metrics.ObserveFunctionCall(tc.Name, "error")
			return failedText
		}
	}

	result, err := handler(ctx, args, sess)
	if err != nil {
		e.logger.Error("functions: handler failed",
			"function", tc.Name, "call_id", sess.ID, "error", err)
		e.metrics.ObserveFunctionCall(tc.Name, "error")
		return failedText
	}
	e.metrics.ObserveFunctionCall(tc.Name, "ok")
	return result
}

// ForgetCall drops the dedupe entries for an ended call.
func (e *Executor) ForgetCall(callID string) {
	prefix := callID + "/"
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.seen {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(e.seen, key)
		}
	}
}
