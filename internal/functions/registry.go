// Package functions dispatches model-issued tool calls to registered
// handlers and always hands back caller-safe spoken text.
package functions

import (
	"context"
	"sync"

	"github.com/wolfman30/voiceline-ai/internal/call"
)

// Handler executes one tool call. The returned string is spoken to the
// caller verbatim, so it must always be conversational. Errors are for the
// internal log only; they never reach the caller.
type Handler func(ctx context.Context, args map[string]any, sess *call.Session) (string, error)

// Registry maps function names to handlers. Registration happens at wiring
// time; lookups are concurrent.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces a handler.
func (r *Registry) Register(name string, h Handler) {
	if name == "" || h == nil {
		panic("functions: name and handler required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler for a name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered function names, for prompt assembly.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
