// Package audio holds the inbound audio plumbing for a call: chunk
// buffering, fixed-duration frame assembly, and energy-based voice
// activity detection.
package audio

import (
	"sync"
	"time"
)

// Buffer accumulates raw audio chunks from the telephony leg and yields
// fixed-duration frames. Ingestion and frame consumption run on different
// goroutines; the buffer absorbs the rate mismatch so ingestion never blocks.
type Buffer struct {
	mu            sync.Mutex
	data          []byte
	sampleRate    int
	bytesPerSamp  int
	lastChunkTime time.Time
}

// NewBuffer creates a buffer for the given sample rate and sample width.
// Telephony legs typically deliver 8kHz audio, one byte per sample for
// G.711 or two for linear PCM.
func NewBuffer(sampleRate, bytesPerSample int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = 8000
	}
	if bytesPerSample <= 0 {
		bytesPerSample = 2
	}
	return &Buffer{
		sampleRate:   sampleRate,
		bytesPerSamp: bytesPerSample,
	}
}

// AddChunk appends raw audio received at the given timestamp.
func (b *Buffer) AddChunk(chunk []byte, ts time.Time) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, chunk...)
	b.lastChunkTime = ts
}

// Frame returns a frame of exactly durationMS worth of audio, or ok=false if
// not enough data has accumulated yet. It never returns a short frame.
func (b *Buffer) Frame(durationMS int) ([]byte, bool) {
	need := b.frameSize(durationMS)
	if need <= 0 {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) < need {
		return nil, false
	}
	frame := make([]byte, need)
	copy(frame, b.data[:need])
	b.data = b.data[need:]
	return frame, true
}

// Buffered reports how many bytes are waiting.
func (b *Buffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// LastChunkAt returns the timestamp of the most recent chunk.
func (b *Buffer) LastChunkAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastChunkTime
}

// Reset discards buffered audio without touching configuration.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}

func (b *Buffer) frameSize(durationMS int) int {
	if durationMS <= 0 {
		return 0
	}
	return b.sampleRate * durationMS / 1000 * b.bytesPerSamp
}
