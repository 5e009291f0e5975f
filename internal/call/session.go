// Package call holds per-call conversation state: the turn history, routing
// state, and optional booking sub-flow, all exclusively owned by one call.
package call

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/voiceline-ai/internal/booking"
	"github.com/wolfman30/voiceline-ai/internal/llm"
)

// ErrSessionEnded is returned for operations on an ended call session.
var ErrSessionEnded = errors.New("call: session ended")

// ConversationTurn is one caller utterance plus the agent's reply.
type ConversationTurn struct {
	ID          string
	Utterance   string
	Response    string
	AgentID     string
	Strategy    string
	StartedAt   time.Time
	CompletedAt time.Time
}

// RoutingState tracks which agent currently has the call.
type RoutingState struct {
	ActiveAgentID    string // empty means the master agent
	Handoffs         int
	InteractionCount int
}

// Session is the in-memory context for one active call. Turn commits go
// through a per-call queue so history is appended in strict completion
// order, even when answers for different turns finish out of order.
type Session struct {
	ID           string
	CompanyID    string
	CallerNumber string
	StartedAt    time.Time

	mu      sync.Mutex
	turns   []ConversationTurn
	routing RoutingState
	booking *booking.Session
	closers []func()
	ended   bool

	// commitMu serializes sends on commits against the close in End, so a
	// commit racing call end can never send on a closed channel.
	commitMu sync.Mutex
	commits  chan func()
	done     chan struct{}
}

// NewSession creates a session and starts its commit queue.
func NewSession(callID, companyID, callerNumber string) *Session {
	s := &Session{
		ID:           callID,
		CompanyID:    companyID,
		CallerNumber: callerNumber,
		StartedAt:    time.Now().UTC(),
		commits:      make(chan func(), 32),
		done:         make(chan struct{}),
	}
	go s.commitLoop()
	return s
}

func (s *Session) commitLoop() {
	defer close(s.done)
	for fn := range s.commits {
		fn()
	}
}

// Commit enqueues fn on the per-call commit queue. Functions run one at a
// time in enqueue order; a turn that finishes first commits first.
func (s *Session) Commit(fn func()) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.mu.Lock()
	ended := s.ended
	s.mu.Unlock()
	if ended {
		return ErrSessionEnded
	}
	s.commits <- fn
	return nil
}

// AppendTurn records a completed turn via the commit queue.
func (s *Session) AppendTurn(turn ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CompletedAt.IsZero() {
		turn.CompletedAt = time.Now().UTC()
	}
	return s.Commit(func() {
		s.mu.Lock()
		s.turns = append(s.turns, turn)
		s.routing.InteractionCount++
		s.mu.Unlock()
	})
}

// Turns returns a copy of the committed turn history.
func (s *Session) Turns() []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// HistoryMessages renders the committed turns as chat messages for prompts.
func (s *Session) HistoryMessages() []llm.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]llm.ChatMessage, 0, len(s.turns)*2)
	for _, t := range s.turns {
		if t.Utterance != "" {
			msgs = append(msgs, llm.ChatMessage{Role: llm.ChatRoleUser, Content: t.Utterance})
		}
		if t.Response != "" {
			msgs = append(msgs, llm.ChatMessage{Role: llm.ChatRoleAssistant, Content: t.Response})
		}
	}
	return msgs
}

// Routing returns the current routing state.
func (s *Session) Routing() RoutingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routing
}

// SetActiveAgent records a routing hand-off.
func (s *Session) SetActiveAgent(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.routing.ActiveAgentID != agentID {
		s.routing.Handoffs++
	}
	s.routing.ActiveAgentID = agentID
}

// Booking returns the booking sub-flow, creating it on first use.
func (s *Session) Booking() *booking.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booking == nil {
		s.booking = booking.NewSession()
	}
	return s.booking
}

// HasBooking reports whether a booking flow has started.
func (s *Session) HasBooking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booking != nil
}

// ClearBooking drops the booking sub-flow.
func (s *Session) ClearBooking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.booking = nil
}

// OnEnd registers a cleanup hook, typically closing a provider session.
// Hooks run exactly once, in reverse registration order, when End is called.
func (s *Session) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// End drains the commit queue, runs cleanup hooks, and marks the session
// ended. Streaming provider sessions must be closed here, not left to the
// garbage collector.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	// ended is already set, so a commit that wins the race for commitMu is
	// the last send before the close; one that loses sees ErrSessionEnded.
	s.commitMu.Lock()
	close(s.commits)
	s.commitMu.Unlock()
	<-s.done

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// MaskNumber redacts a phone number for logs, keeping the last two digits.
func MaskNumber(number string) string {
	digits := 0
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 2 {
		return strings.Repeat("*", len(number))
	}
	var b strings.Builder
	seen := 0
	for _, r := range number {
		if r >= '0' && r <= '9' {
			seen++
			if seen > digits-2 {
				b.WriteRune(r)
				continue
			}
			b.WriteRune('*')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
