package call

import "sync"

// Registry is the process-wide lookup of active call sessions by call ID.
// Per-call state stays inside the Session; the registry only finds it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session. An existing session for the same call ID is
// replaced; the caller owns ending the old one.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns the session for a call, or nil.
func (r *Registry) Get(callID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[callID]
}

// Remove ends and removes a session. It is a no-op for unknown calls.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	s := r.sessions[callID]
	delete(r.sessions, callID)
	r.mu.Unlock()
	if s != nil {
		s.End()
	}
}

// Len returns the number of active calls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
