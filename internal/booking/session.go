// Package booking tracks the appointment sub-flow of a call as an explicit
// state machine with an append-only transition log.
package booking

import (
	"fmt"
	"time"
)

// State is the booking flow's current position.
type State string

const (
	StateInitial              State = "INITIAL"
	StateCollectingDate       State = "COLLECTING_DATE"
	StateCollectingTime       State = "COLLECTING_TIME"
	StateCheckingAvailability State = "CHECKING_AVAILABILITY"
	StateCollectingEmail      State = "COLLECTING_EMAIL"
	StateVerifyingEmail       State = "VERIFYING_EMAIL"
	StateConfirmingBooking    State = "CONFIRMING_BOOKING"
	StateCompleted            State = "COMPLETED"
	StateFailed               State = "FAILED"
)

// Fields is what has been collected from the caller so far.
type Fields struct {
	Date          string    // caller-stated date, e.g. "tomorrow", "March 3rd"
	Time          string    // caller-stated time, e.g. "2pm"
	When          time.Time // resolved ISO datetime once both are parsed
	Email         string
	EmailVerified bool
	SlotChecked   bool
	SlotAvailable bool
}

// TransitionRecord is one entry in the audit log.
type TransitionRecord struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// Session is one booking attempt within a call. Not safe for concurrent use;
// the owning call context serializes access.
type Session struct {
	state   State
	fields  Fields
	history []TransitionRecord
	now     func() time.Time
}

// NewSession starts a booking flow in INITIAL.
func NewSession() *Session {
	return &Session{state: StateInitial, now: time.Now}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Fields returns a copy of the collected fields.
func (s *Session) Fields() Fields { return s.fields }

// History returns the transition log, oldest first.
func (s *Session) History() []TransitionRecord { return s.history }

// Terminal reports whether the flow has finished.
func (s *Session) Terminal() bool {
	return s.state == StateCompleted || s.state == StateFailed
}

// SetDate records the caller's stated date.
func (s *Session) SetDate(date string) { s.fields.Date = date }

// SetTime records the caller's stated time.
func (s *Session) SetTime(t string) { s.fields.Time = t }

// SetWhen records the resolved appointment datetime.
func (s *Session) SetWhen(when time.Time) { s.fields.When = when }

// SetEmail records the caller's email and resets verification.
func (s *Session) SetEmail(email string) {
	s.fields.Email = email
	s.fields.EmailVerified = false
}

// MarkEmailVerified records a successful code check.
func (s *Session) MarkEmailVerified() { s.fields.EmailVerified = true }

// RecordSlotCheck records the availability check outcome.
func (s *Session) RecordSlotCheck(available bool) {
	s.fields.SlotChecked = true
	s.fields.SlotAvailable = available
}

// allowed maps each state to the transitions out of it. Terminal states have
// no entries.
var allowed = map[State][]State{
	StateInitial:              {StateCollectingDate, StateFailed},
	StateCollectingDate:       {StateCollectingTime, StateCheckingAvailability, StateFailed},
	StateCollectingTime:       {StateCheckingAvailability, StateFailed},
	StateCheckingAvailability: {StateCollectingEmail, StateCollectingDate, StateFailed},
	StateCollectingEmail:      {StateVerifyingEmail, StateFailed},
	StateVerifyingEmail:       {StateConfirmingBooking, StateCollectingEmail, StateFailed},
	StateConfirmingBooking:    {StateCompleted, StateFailed},
}

// Transition moves to a new state, enforcing both the transition table and
// the data guards: a transition fires only after its triggering data is
// collected. Every successful transition appends to the history log.
func (s *Session) Transition(to State, reason string) error {
	if !transitionAllowed(s.state, to) {
		return fmt.Errorf("booking: illegal transition %s -> %s", s.state, to)
	}
	if err := s.guard(to); err != nil {
		return err
	}
	s.history = append(s.history, TransitionRecord{
		From:      s.state,
		To:        to,
		Reason:    reason,
		Timestamp: s.now(),
	})
	s.state = to
	return nil
}

func transitionAllowed(from, to State) bool {
	for _, t := range allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

func (s *Session) guard(to State) error {
	switch to {
	case StateCollectingTime:
		if s.fields.Date == "" {
			return fmt.Errorf("booking: cannot collect time before a date is given")
		}
	case StateCheckingAvailability:
		if s.fields.Date == "" || s.fields.Time == "" {
			return fmt.Errorf("booking: cannot check availability without date and time")
		}
	case StateCollectingEmail:
		if !s.fields.SlotChecked || !s.fields.SlotAvailable {
			return fmt.Errorf("booking: cannot collect email before an available slot is confirmed")
		}
	case StateConfirmingBooking:
		if !s.fields.EmailVerified {
			return fmt.Errorf("booking: cannot confirm before the email is verified")
		}
	case StateCompleted:
		if !s.CanCreateBooking() {
			return fmt.Errorf("booking: cannot complete with missing fields")
		}
	}
	return nil
}

// CanCreateBooking requires every field the downstream booking call needs.
// Partial data must never produce a booking attempt.
func (s *Session) CanCreateBooking() bool {
	f := s.fields
	return f.Date != "" && f.Time != "" && f.Email != "" && f.EmailVerified && f.SlotAvailable
}
