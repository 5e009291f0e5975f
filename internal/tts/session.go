// Package tts streams synthesized speech for a call, one sentence at a time,
// and supports barge-in: an interrupt flushes everything not yet played.
package tts

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// Provider converts one text chunk into a stream of audio bytes.
type Provider interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// ErrSessionClosed is returned when text is added to a closed session.
var ErrSessionClosed = errors.New("tts: session closed")

// audioChunkSize is how much synthesized audio is forwarded per chunk.
const audioChunkSize = 3200

type queuedSentence struct {
	text string
	gen  int64
}

// Session synthesizes streamed response text sentence-by-sentence, in order,
// and emits audio chunks with backpressure: if the consumer (the telephony
// leg) is slow, synthesis pauses rather than buffering unbounded audio.
type Session struct {
	provider Provider
	logger   *logging.Logger

	// sendMu serializes enqueues against the close in Close, so text added
	// while the call is ending can never send on a closed channel.
	sendMu    sync.Mutex
	sentences chan queuedSentence
	chunks    chan []byte

	// gen is bumped on every interrupt; queued sentences and in-flight
	// chunk deliveries from an older generation are dropped.
	gen      atomic.Int64
	speaking atomic.Bool
	closed   atomic.Bool

	buf *SentenceBuffer

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg sync.WaitGroup
}

// NewSession creates a session and starts its synthesis worker.
func NewSession(ctx context.Context, provider Provider, logger *logging.Logger) *Session {
	if provider == nil {
		panic("tts: provider cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Session{
		provider:  provider,
		logger:    logger,
		sentences: make(chan queuedSentence, 16),
		chunks:    make(chan []byte, 4),
		buf:       NewSentenceBuffer(),
	}
	s.wg.Add(1)
	go s.worker(ctx)
	return s
}

// AddText feeds streamed response text. Complete sentences are queued for
// synthesis immediately.
func (s *Session) AddText(text string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	for _, sentence := range s.buf.Add(text) {
		if err := s.enqueue(sentence); err != nil {
			return err
		}
	}
	return nil
}

// Flush queues any trailing partial sentence. Call at end of a response.
func (s *Session) Flush() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if rest := s.buf.Flush(); rest != "" {
		return s.enqueue(rest)
	}
	return nil
}

// Chunks is the stream of synthesized audio for the telephony leg.
func (s *Session) Chunks() <-chan []byte {
	return s.chunks
}

// Speaking reports whether synthesized audio is currently being produced.
// The pipeline uses this for the half-duplex gate.
func (s *Session) Speaking() bool {
	return s.speaking.Load()
}

// Interrupt drops all queued sentences and cancels in-flight synthesis.
// Already-emitted chunks are the telephony leg's responsibility to clear.
func (s *Session) Interrupt() {
	s.gen.Add(1)
	s.buf.Flush()

	// Drain anything already queued.
drain:
	for {
		select {
		case <-s.sentences:
		default:
			break drain
		}
	}

	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelMu.Unlock()
	s.speaking.Store(false)
}

// Close stops the worker and closes the chunk stream.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.Interrupt()
	// closed is already set, so an enqueue that wins the race for sendMu is
	// the last send before the close; the worker's closed check drops it.
	s.sendMu.Lock()
	close(s.sentences)
	s.sendMu.Unlock()
	s.wg.Wait()
	close(s.chunks)
}

func (s *Session) enqueue(sentence string) error {
	// Blocks when the queue is full: synthesis order matters and
	// backpressure beats dropping speech.
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.sentences <- queuedSentence{text: sentence, gen: s.gen.Load()}
	return nil
}

func (s *Session) worker(ctx context.Context) {
	defer s.wg.Done()
	for item := range s.sentences {
		if s.closed.Load() || item.gen != s.gen.Load() {
			continue // session closing, or flushed by an interrupt
		}
		s.synthesizeOne(ctx, item)
	}
}

func (s *Session) synthesizeOne(ctx context.Context, item queuedSentence) {
	synthCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	defer cancel()

	stream, err := s.provider.Synthesize(synthCtx, item.text)
	if err != nil {
		if synthCtx.Err() == nil {
			s.logger.Error("tts: synthesis failed", "error", err)
		}
		return
	}
	defer stream.Close()

	s.speaking.Store(true)
	defer func() {
		// Only mark quiet if nothing newer superseded us.
		if item.gen == s.gen.Load() {
			s.speaking.Store(false)
		}
	}()

	buf := make([]byte, audioChunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if item.gen != s.gen.Load() {
				return // interrupted mid-stream, drop the rest
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-synthCtx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && synthCtx.Err() == nil {
				s.logger.Warn("tts: audio stream ended", "error", err)
			}
			return
		}
	}
}
