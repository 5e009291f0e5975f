package telephony

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Stream is the outbound leg the pipeline pushes audio through.
type Stream interface {
	// SendAudio forwards one synthesized audio chunk to the caller.
	SendAudio(chunk []byte) error
	// Clear tells the provider to flush any audio it has buffered but not
	// yet played. Issued on barge-in.
	Clear() error
}

type wsConn interface {
	WriteJSON(v any) error
}

// wsStream writes outbound envelopes on the media websocket. Gorilla
// connections allow one concurrent writer, so writes are serialized here.
type wsStream struct {
	mu        sync.Mutex
	conn      wsConn
	streamSID string
}

func newWSStream(conn wsConn, streamSID string) *wsStream {
	return &wsStream{conn: conn, streamSID: streamSID}
}

func (s *wsStream) SendAudio(chunk []byte) error {
	env := Envelope{
		Event:     EventMedia,
		StreamSID: s.streamSID,
		Media:     &MediaEvent{Payload: base64.StdEncoding.EncodeToString(chunk)},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("telephony: send audio: %w", err)
	}
	return nil
}

func (s *wsStream) Clear() error {
	env := Envelope{Event: EventClear, StreamSID: s.streamSID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("telephony: clear: %w", err)
	}
	return nil
}

var _ Stream = (*wsStream)(nil)
var _ wsConn = (*websocket.Conn)(nil)
