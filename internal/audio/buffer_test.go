package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameNotReadyUntilEnoughData(t *testing.T) {
	// 8kHz, 2 bytes/sample: a 20ms frame is 320 bytes.
	b := NewBuffer(8000, 2)

	_, ok := b.Frame(20)
	assert.False(t, ok, "empty buffer should report not ready")

	b.AddChunk(make([]byte, 100), time.Now())
	_, ok = b.Frame(20)
	assert.False(t, ok, "partial data should report not ready")

	b.AddChunk(make([]byte, 220), time.Now())
	frame, ok := b.Frame(20)
	require.True(t, ok)
	assert.Len(t, frame, 320)
}

func TestFrameNeverShort(t *testing.T) {
	b := NewBuffer(8000, 1)
	b.AddChunk(make([]byte, 1000), time.Now())

	for {
		frame, ok := b.Frame(20)
		if !ok {
			break
		}
		// 20ms at 8kHz single byte samples = 160 bytes, always exact.
		assert.Len(t, frame, 160)
	}
	assert.Equal(t, 1000%160, b.Buffered())
}

func TestFrameConsumesInOrder(t *testing.T) {
	b := NewBuffer(1000, 1) // 1 byte per ms keeps the math obvious
	chunk := make([]byte, 20)
	for i := range chunk {
		chunk[i] = byte(i)
	}
	b.AddChunk(chunk, time.Now())

	first, ok := b.Frame(10)
	require.True(t, ok)
	second, ok := b.Frame(10)
	require.True(t, ok)
	assert.Equal(t, byte(0), first[0])
	assert.Equal(t, byte(10), second[0])
}

func TestReset(t *testing.T) {
	b := NewBuffer(8000, 2)
	b.AddChunk(make([]byte, 640), time.Now())
	b.Reset()
	_, ok := b.Frame(20)
	assert.False(t, ok)
}
