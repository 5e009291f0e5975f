package telephony

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	chunks [][]byte
	ended  bool
}

func (s *recordingSink) PushAudio(chunk []byte, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
}

func (s *recordingSink) CallEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *recordingSink) snapshot() ([][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...), s.ended
}

type recordingCalls struct {
	mu      sync.Mutex
	callID  string
	company string
	caller  string
	sink    *recordingSink
	stream  Stream
}

func (c *recordingCalls) CallStarted(ctx context.Context, callID, companyID, callerNumber string, stream Stream) (AudioSink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callID = callID
	c.company = companyID
	c.caller = callerNumber
	c.stream = stream
	c.sink = &recordingSink{}
	return c.sink, nil
}

func dialHandler(t *testing.T, h *WSHandler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestMediaStreamLifecycle(t *testing.T) {
	calls := &recordingCalls{}
	conn := dialHandler(t, NewWSHandler(calls, nil))

	require.NoError(t, conn.WriteJSON(Envelope{
		Event: EventStart,
		Start: &StartEvent{
			StreamSID: "stream-1",
			CallSID:   "call-1",
			CustomParameters: map[string]string{
				"company_id":    "co-1",
				"caller_number": "+15551234567",
			},
		},
	}))

	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	require.NoError(t, conn.WriteJSON(Envelope{
		Event: EventMedia,
		Media: &MediaEvent{Payload: payload},
	}))
	require.NoError(t, conn.WriteJSON(Envelope{Event: EventStop}))

	require.Eventually(t, func() bool {
		calls.mu.Lock()
		defer calls.mu.Unlock()
		if calls.sink == nil {
			return false
		}
		_, ended := calls.sink.snapshot()
		return ended
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "call-1", calls.callID)
	assert.Equal(t, "co-1", calls.company)
	assert.Equal(t, "+15551234567", calls.caller)

	chunks, ended := calls.sink.snapshot()
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, chunks[0])
	assert.True(t, ended)
}

func TestMediaBeforeStartIsDropped(t *testing.T) {
	calls := &recordingCalls{}
	conn := dialHandler(t, NewWSHandler(calls, nil))

	require.NoError(t, conn.WriteJSON(Envelope{
		Event: EventMedia,
		Media: &MediaEvent{Payload: base64.StdEncoding.EncodeToString([]byte{9})},
	}))
	require.NoError(t, conn.WriteJSON(Envelope{Event: EventStop}))

	// The handler must survive media before start; give it a moment.
	time.Sleep(50 * time.Millisecond)
	calls.mu.Lock()
	defer calls.mu.Unlock()
	assert.Nil(t, calls.sink)
}

func TestOutboundStreamReachesProvider(t *testing.T) {
	calls := &recordingCalls{}
	conn := dialHandler(t, NewWSHandler(calls, nil))

	require.NoError(t, conn.WriteJSON(Envelope{
		Event: EventStart,
		Start: &StartEvent{StreamSID: "stream-1", CallSID: "call-1"},
	}))

	require.Eventually(t, func() bool {
		calls.mu.Lock()
		defer calls.mu.Unlock()
		return calls.stream != nil
	}, 2*time.Second, 10*time.Millisecond)

	calls.mu.Lock()
	stream := calls.stream
	calls.mu.Unlock()
	require.NoError(t, stream.SendAudio([]byte{5, 6}))
	require.NoError(t, stream.Clear())

	var media Envelope
	require.NoError(t, conn.ReadJSON(&media))
	assert.Equal(t, EventMedia, media.Event)
	decoded, err := base64.StdEncoding.DecodeString(media.Media.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, decoded)

	var clear Envelope
	require.NoError(t, conn.ReadJSON(&clear))
	assert.Equal(t, EventClear, clear.Event)
}
