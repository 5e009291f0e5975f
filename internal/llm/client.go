package llm

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleTool      = "tool"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// ToolDefinition describes a callable function exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
}

// ToolCall is a structured request from the model to invoke a function.
// Arguments is the raw JSON the model produced; callers decode it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

// StreamChunk is one event on a streaming completion. Exactly one of Text,
// ToolCalls, or Error is meaningful; Done marks the final chunk.
type StreamChunk struct {
	Text      string
	ToolCalls []ToolCall
	Usage     TokenUsage
	Done      bool
	Error     error
}

type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// StreamingClient emits partial output as the model generates it. Tool calls
// are buffered until their arguments are complete: a tool call can never be
// partially executed, so the stream only surfaces whole ones.
type StreamingClient interface {
	Client
	CompleteStream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
