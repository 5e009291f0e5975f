package tts

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowReader yields its payload in small reads, optionally delaying so tests
// can interrupt mid-stream.
type slowReader struct {
	data  []byte
	pos   int
	delay time.Duration
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	n := copy(p, r.data[r.pos:r.pos+min(100, len(r.data)-r.pos)])
	r.pos += n
	return n, nil
}

func (r *slowReader) Close() error { return nil }

type fakeTTSProvider struct {
	mu    sync.Mutex
	texts []string
	delay time.Duration
}

func (f *fakeTTSProvider) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return &slowReader{data: []byte(strings.Repeat("a", 300)), delay: f.delay}, nil
}

func (f *fakeTTSProvider) synthesized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func collect(t *testing.T, ch <-chan []byte, atLeast int, within time.Duration) [][]byte {
	t.Helper()
	var out [][]byte
	deadline := time.After(within)
	for len(out) < atLeast {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, chunk)
		case <-deadline:
			t.Fatalf("timed out waiting for %d chunks, got %d", atLeast, len(out))
		}
	}
	return out
}

func TestSessionSynthesizesSentencesInOrder(t *testing.T) {
	provider := &fakeTTSProvider{}
	sess := NewSession(context.Background(), provider, nil)
	defer sess.Close()

	require.NoError(t, sess.AddText("First sentence. Second"))
	require.NoError(t, sess.AddText(" sentence."))
	require.NoError(t, sess.Flush())

	collect(t, sess.Chunks(), 6, 2*time.Second) // 300 bytes / 100-byte reads, two sentences

	assert.Equal(t, []string{"First sentence.", "Second sentence."}, provider.synthesized())
}

func TestInterruptDropsQueuedSentences(t *testing.T) {
	provider := &fakeTTSProvider{delay: 50 * time.Millisecond}
	sess := NewSession(context.Background(), provider, nil)
	defer sess.Close()

	require.NoError(t, sess.AddText("Sentence one. Sentence two. Sentence three."))

	// Let the first synthesis start, then barge in.
	collect(t, sess.Chunks(), 1, 2*time.Second)
	sess.Interrupt()

	// Give the worker time to observe the flush.
	time.Sleep(200 * time.Millisecond)
	texts := provider.synthesized()
	assert.LessOrEqual(t, len(texts), 2, "interrupt should drop queued sentences, got %v", texts)
	assert.False(t, sess.Speaking())
}

func TestSpeakingFlagTracksSynthesis(t *testing.T) {
	provider := &fakeTTSProvider{delay: 30 * time.Millisecond}
	sess := NewSession(context.Background(), provider, nil)
	defer sess.Close()

	assert.False(t, sess.Speaking())
	require.NoError(t, sess.AddText("Hello there."))

	collect(t, sess.Chunks(), 1, 2*time.Second)
	assert.True(t, sess.Speaking())
}

func TestAddTextRacesCloseWithoutPanic(t *testing.T) {
	// Close runs from the call-end hooks while the turn loop may still be
	// feeding text; a late add must get ErrSessionClosed, never panic.
	for i := 0; i < 200; i++ {
		provider := &fakeTTSProvider{}
		sess := NewSession(context.Background(), provider, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				if err := sess.AddText("One more thing. "); err != nil {
					assert.ErrorIs(t, err, ErrSessionClosed)
					return
				}
			}
			_ = sess.Flush()
		}()
		go func() {
			defer wg.Done()
			sess.Close()
		}()
		wg.Wait()
	}
}

func TestAddTextAfterCloseErrors(t *testing.T) {
	provider := &fakeTTSProvider{}
	sess := NewSession(context.Background(), provider, nil)
	sess.Close()

	assert.ErrorIs(t, sess.AddText("too late."), ErrSessionClosed)
	assert.ErrorIs(t, sess.Flush(), ErrSessionClosed)
}
