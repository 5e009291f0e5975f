package functions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/internal/llm"
)

func newTestSession(t *testing.T) *call.Session {
	t.Helper()
	s := call.NewSession("call-1", "co-1", "+15551230000")
	t.Cleanup(s.End)
	return s
}

func TestExecuteUnregisteredFunction(t *testing.T) {
	exec := NewExecutor(NewRegistry(), nil, nil)
	sess := newTestSession(t)

	got := exec.Execute(context.Background(), llm.ToolCall{ID: "tc-1", Name: "order_pizza"}, sess)
	assert.Equal(t, notImplementedText, got)
}

func TestExecuteHandlerResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register("greet", func(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
		return "Hello " + args["name"].(string) + "!", nil
	})
	exec := NewExecutor(reg, nil, nil)
	sess := newTestSession(t)

	got := exec.Execute(context.Background(), llm.ToolCall{
		ID: "tc-1", Name: "greet", Arguments: `{"name":"Sam"}`,
	}, sess)
	assert.Equal(t, "Hello Sam!", got)
}

func TestExecuteHandlerErrorIsCallerSafe(t *testing.T) {
	reg := NewRegistry()
	reg.Register("explode", func(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
		return "", errors.New("downstream 500")
	})
	exec := NewExecutor(reg, nil, nil)
	sess := newTestSession(t)

	got := exec.Execute(context.Background(), llm.ToolCall{ID: "tc-1", Name: "explode"}, sess)
	assert.Equal(t, failedText, got)
}

func TestExecuteBadArgumentsIsCallerSafe(t *testing.T) {
	reg := NewRegistry()
	reg.Register("noop", func(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
		return "ok", nil
	})
	exec := NewExecutor(reg, nil, nil)
	sess := newTestSession(t)

	got := exec.Execute(context.Background(), llm.ToolCall{
		ID: "tc-1", Name: "noop", Arguments: "{not json",
	}, sess)
	assert.Equal(t, failedText, got)
}

func TestExecuteAtMostOncePerToolCallID(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	reg.Register("count", func(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
		calls++
		return "done", nil
	})
	exec := NewExecutor(reg, nil, nil)
	sess := newTestSession(t)

	tc := llm.ToolCall{ID: "tc-1", Name: "count"}
	first := exec.Execute(context.Background(), tc, sess)
	second := exec.Execute(context.Background(), tc, sess)

	assert.Equal(t, 1, calls, "duplicate tool call id must not re-run the handler")
	assert.Equal(t, first, second)

	exec.Execute(context.Background(), llm.ToolCall{ID: "tc-2", Name: "count"}, sess)
	assert.Equal(t, 2, calls)
}

func TestForgetCallClearsDedupe(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	reg.Register("count", func(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
		calls++
		return "done", nil
	})
	exec := NewExecutor(reg, nil, nil)
	sess := newTestSession(t)

	tc := llm.ToolCall{ID: "tc-1", Name: "count"}
	exec.Execute(context.Background(), tc, sess)
	exec.ForgetCall(sess.ID)
	exec.Execute(context.Background(), tc, sess)

	assert.Equal(t, 2, calls)
}
