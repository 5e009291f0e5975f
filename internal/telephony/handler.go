package telephony

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// AudioSink receives the inbound leg of one call. PushAudio must not block
// on turn processing; the pipeline buffers internally.
type AudioSink interface {
	PushAudio(chunk []byte, ts time.Time)
	CallEnded()
}

// CallHandler is implemented by the orchestrator: it is told when a call's
// media stream starts and returns the sink for that call's audio.
type CallHandler interface {
	CallStarted(ctx context.Context, callID, companyID, callerNumber string, stream Stream) (AudioSink, error)
}

// WSHandler serves the provider's media-stream websocket endpoint.
type WSHandler struct {
	calls    CallHandler
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates the media-stream endpoint handler.
func NewWSHandler(calls CallHandler, logger *logging.Logger) *WSHandler {
	if calls == nil {
		panic("telephony: call handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WSHandler{
		calls:  calls,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The provider connects server-to-server; origin checks do not apply.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and pumps media events until the stream
// stops or the socket drops.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("telephony: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.pump(r.Context(), conn)
}

func (h *WSHandler) pump(ctx context.Context, conn *websocket.Conn) {
	var sink AudioSink
	var callID string
	defer func() {
		if sink != nil {
			sink.CallEnded()
		}
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("telephony: media socket dropped", "call_id", callID, "error", err)
			}
			return
		}

		switch env.Event {
		case EventStart:
			if env.Start == nil {
				h.logger.Warn("telephony: start event without payload")
				continue
			}
			callID = env.Start.CallSID
			companyID := env.Start.CustomParameters["company_id"]
			caller := env.Start.CustomParameters["caller_number"]

			stream := newWSStream(conn, env.Start.StreamSID)
			s, err := h.calls.CallStarted(ctx, callID, companyID, caller, stream)
			if err != nil {
				h.logger.Error("telephony: call setup failed",
					"call_id", callID, "caller", call.MaskNumber(caller), "error", err)
				return
			}
			sink = s
			h.logger.Info("telephony: media stream started",
				"call_id", callID, "caller", call.MaskNumber(caller))

		case EventMedia:
			if sink == nil || env.Media == nil {
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(env.Media.Payload)
			if err != nil {
				h.logger.Warn("telephony: undecodable media payload", "call_id", callID)
				continue
			}
			sink.PushAudio(chunk, time.Now())

		case EventStop:
			h.logger.Info("telephony: media stream stopped", "call_id", callID)
			return
		}
	}
}
