// Package stt manages the long-lived speech-to-text session for a call.
package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// State is the session lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrSessionClosed is returned when audio is sent to a closed session.
var ErrSessionClosed = errors.New("stt: session closed")

// TranscriptHandler receives transcripts from the provider. isFinal marks a
// provider-finalized segment; speechFinal marks end of the utterance.
type TranscriptHandler func(text string, isFinal, speechFinal bool)

// Provider opens streaming transcription sessions against a vendor.
type Provider interface {
	Open(ctx context.Context, onTranscript TranscriptHandler) (ProviderSession, error)
}

// ProviderSession is one open streaming connection.
type ProviderSession interface {
	Send(audio []byte) error
	Close() error
}

// Config tunes session behavior. Zero values get sane defaults.
type Config struct {
	// SilenceGap is how long after the last non-empty partial transcript an
	// utterance is force-finalized when the provider never signals
	// speech-final.
	SilenceGap time.Duration
	// ConnectTimeout bounds session establishment.
	ConnectTimeout time.Duration
	// MaxReconnects bounds recovery attempts before giving up on the call.
	MaxReconnects int
}

func (c *Config) applyDefaults() {
	if c.SilenceGap <= 0 {
		c.SilenceGap = 1500 * time.Millisecond
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 2
	}
}

// Session accumulates partial transcripts into utterances and guarantees
// exactly one downstream dispatch per finalized utterance, whether the
// trigger was a provider speech-final signal or the silence gap.
type Session struct {
	provider Provider
	cfg      Config
	logger   *logging.Logger

	state atomic.Int32

	mu             sync.Mutex
	ps             ProviderSession
	partial        []string
	lastPartialAt  time.Time
	reconnectsLeft int

	onUtterance func(text string)
	onInterim   func(text string)
	onTrouble   func()
}

// NewSession creates a session. onUtterance is invoked once per finalized
// utterance; onInterim receives non-final transcripts for telemetry only and
// must never trigger turn processing; onTrouble fires when reconnection is
// exhausted so the pipeline can speak a fallback prompt.
func NewSession(provider Provider, cfg Config, logger *logging.Logger, onUtterance func(string), onInterim func(string), onTrouble func()) *Session {
	if provider == nil {
		panic("stt: provider cannot be nil")
	}
	if onUtterance == nil {
		panic("stt: utterance handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()

	s := &Session{
		provider:       provider,
		cfg:            cfg,
		logger:         logger,
		onUtterance:    onUtterance,
		onInterim:      onInterim,
		onTrouble:      onTrouble,
		reconnectsLeft: cfg.MaxReconnects,
	}
	s.state.Store(int32(StateDisconnected))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Connect establishes the provider session, bounded by ConnectTimeout.
func (s *Session) Connect(ctx context.Context) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	s.state.Store(int32(StateConnecting))

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	ps, err := s.provider.Open(connectCtx, s.handleTranscript)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return fmt.Errorf("stt: connect: %w", err)
	}

	s.mu.Lock()
	s.ps = ps
	s.mu.Unlock()
	s.state.Store(int32(StateConnected))
	return nil
}

// Send forwards an audio frame. Connection errors trigger a bounded
// reconnect; when recovery is exhausted the trouble callback fires once.
func (s *Session) Send(ctx context.Context, frame []byte) error {
	switch s.State() {
	case StateClosed:
		return ErrSessionClosed
	case StateDisconnected, StateConnecting:
		return errors.New("stt: session not connected")
	}

	s.mu.Lock()
	ps := s.ps
	s.mu.Unlock()

	if err := ps.Send(frame); err != nil {
		s.logger.Warn("stt: send failed, attempting reconnect", "error", err)
		if rerr := s.reconnect(ctx); rerr != nil {
			return rerr
		}
		s.mu.Lock()
		ps = s.ps
		s.mu.Unlock()
		if err := ps.Send(frame); err != nil {
			return fmt.Errorf("stt: send after reconnect: %w", err)
		}
	}
	s.state.Store(int32(StateStreaming))
	return nil
}

// TickSilence finalizes the pending utterance if the silence gap has elapsed
// since the last non-empty partial. The pipeline calls this from its frame
// loop; it is a no-op while nothing is pending.
func (s *Session) TickSilence(now time.Time) {
	s.mu.Lock()
	if len(s.partial) == 0 || now.Sub(s.lastPartialAt) < s.cfg.SilenceGap {
		s.mu.Unlock()
		return
	}
	text := s.takePendingLocked()
	s.mu.Unlock()

	if text != "" {
		s.onUtterance(text)
	}
}

// Close tears down the provider session. Safe to call more than once.
func (s *Session) Close() error {
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	s.mu.Lock()
	ps := s.ps
	s.ps = nil
	s.mu.Unlock()
	if ps != nil {
		return ps.Close()
	}
	return nil
}

func (s *Session) handleTranscript(text string, isFinal, speechFinal bool) {
	if s.State() == StateClosed {
		return
	}
	trimmed := strings.TrimSpace(text)

	if !isFinal {
		if trimmed != "" && s.onInterim != nil {
			s.onInterim(trimmed)
		}
		return
	}

	s.mu.Lock()
	if trimmed != "" {
		s.partial = append(s.partial, trimmed)
		s.lastPartialAt = time.Now()
	}
	var utterance string
	if speechFinal {
		utterance = s.takePendingLocked()
	}
	s.mu.Unlock()

	if utterance != "" {
		s.onUtterance(utterance)
	}
}

// takePendingLocked drains the accumulated utterance. Clearing under the same
// lock as the check is what makes speech-final and silence-timeout racing on
// the same utterance dispatch only once.
func (s *Session) takePendingLocked() string {
	text := strings.Join(s.partial, " ")
	s.partial = nil
	return strings.TrimSpace(text)
}

func (s *Session) reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.reconnectsLeft <= 0 {
		s.mu.Unlock()
		if s.onTrouble != nil {
			trouble := s.onTrouble
			s.onTrouble = nil
			trouble()
		}
		return errors.New("stt: reconnect attempts exhausted")
	}
	s.reconnectsLeft--
	old := s.ps
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	s.state.Store(int32(StateConnecting))

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	ps, err := s.provider.Open(connectCtx, s.handleTranscript)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return fmt.Errorf("stt: reconnect: %w", err)
	}

	s.mu.Lock()
	s.ps = ps
	s.mu.Unlock()
	s.state.Store(int32(StateConnected))
	s.logger.Info("stt: session reconnected")
	return nil
}
