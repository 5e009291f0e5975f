package call

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is the cross-process view of an active call, kept in Redis with a
// TTL so an operator surface can observe live calls. The authoritative
// per-turn state stays in the in-memory Session.
type State struct {
	CallID        string    `json:"call_id"`
	CompanyID     string    `json:"company_id"`
	CallerNumber  string    `json:"caller_number"`
	ActiveAgentID string    `json:"active_agent_id,omitempty"`
	Status        string    `json:"status"`
	TurnCount     int       `json:"turn_count"`
	StartedAt     time.Time `json:"started_at"`
	LastTurnAt    time.Time `json:"last_turn_at"`
}

// TranscriptEntry is one line of the call transcript.
type TranscriptEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	callKeyPrefix       = "voice:call:"
	transcriptKeyPrefix = "voice:transcript:"
	callTTL             = 24 * time.Hour

	StatusActive = "active"
	StatusEnded  = "ended"
)

// Store keeps call state and transcripts in Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a Redis-backed call store.
func NewStore(rdb *redis.Client) *Store {
	if rdb == nil {
		panic("call: redis client cannot be nil")
	}
	return &Store{rdb: rdb}
}

func callKey(callID string) string       { return callKeyPrefix + callID }
func transcriptKey(callID string) string { return transcriptKeyPrefix + callID }

// SaveState persists or updates call state.
func (s *Store) SaveState(ctx context.Context, state *State) error {
	if state == nil || state.CallID == "" {
		return fmt.Errorf("call: state call_id required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("call: marshal state: %w", err)
	}
	return s.rdb.Set(ctx, callKey(state.CallID), data, callTTL).Err()
}

// GetState returns the call state, or nil when unknown.
func (s *Store) GetState(ctx context.Context, callID string) (*State, error) {
	data, err := s.rdb.Get(ctx, callKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("call: get state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("call: unmarshal state: %w", err)
	}
	return &state, nil
}

// RecordTurn bumps the turn counter and last-activity timestamp.
func (s *Store) RecordTurn(ctx context.Context, callID string) error {
	state, err := s.GetState(ctx, callID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("call: %s not found", callID)
	}
	state.TurnCount++
	state.LastTurnAt = time.Now().UTC()
	return s.SaveState(ctx, state)
}

// MarkEnded flips the call to ended.
func (s *Store) MarkEnded(ctx context.Context, callID string) error {
	state, err := s.GetState(ctx, callID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("call: %s not found", callID)
	}
	state.Status = StatusEnded
	return s.SaveState(ctx, state)
}

// AppendTranscript adds one transcript line and refreshes the TTL.
func (s *Store) AppendTranscript(ctx context.Context, callID string, entry TranscriptEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("call: marshal transcript entry: %w", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, transcriptKey(callID), data)
	pipe.Expire(ctx, transcriptKey(callID), callTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Transcript returns the full transcript, oldest first. Entries that fail
// to decode are skipped.
func (s *Store) Transcript(ctx context.Context, callID string) ([]TranscriptEntry, error) {
	data, err := s.rdb.LRange(ctx, transcriptKey(callID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("call: get transcript: %w", err)
	}
	entries := make([]TranscriptEntry, 0, len(data))
	for _, d := range data {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(d), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
