// Package telephony bridges the provider's media-stream websocket to the
// call pipeline: inbound mu-law frames in, synthesized audio and clear
// commands out.
package telephony

// Envelope is one media-stream websocket message, inbound or outbound.
// The provider multiplexes event types over a single JSON envelope.
type Envelope struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid,omitempty"`
	Start     *StartEvent `json:"start,omitempty"`
	Media     *MediaEvent `json:"media,omitempty"`
	Stop      *StopEvent  `json:"stop,omitempty"`
}

const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
	EventClear = "clear"
)

// StartEvent announces a new media stream for a call.
type StartEvent struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	AccountSID       string            `json:"accountSid"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaEvent carries one base64-encoded mu-law audio chunk.
type MediaEvent struct {
	Track     string `json:"track,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopEvent announces the end of the media stream.
type StopEvent struct {
	CallSID string `json:"callSid"`
}
