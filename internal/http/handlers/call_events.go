// Package handlers holds the HTTP endpoints: telephony call-event webhooks
// and health.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// CallEvent is the provider's call lifecycle webhook payload.
type CallEvent struct {
	EventType string `json:"event_type"`
	Payload   struct {
		CallID       string `json:"call_id"`
		CompanyID    string `json:"company_id"`
		CallerNumber string `json:"from"`
	} `json:"payload"`
}

const (
	eventCallStarted = "call.started"
	eventCallEnded   = "call.ended"
)

// CallEventsHandler processes call lifecycle webhooks. The media websocket
// owns call setup; this endpoint is the authoritative end-of-call signal,
// which matters when the media socket dies without a stop event.
type CallEventsHandler struct {
	registry *call.Registry
	logger   *logging.Logger
}

// NewCallEventsHandler creates the webhook handler.
func NewCallEventsHandler(registry *call.Registry, logger *logging.Logger) *CallEventsHandler {
	if registry == nil {
		panic("handlers: registry cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CallEventsHandler{registry: registry, logger: logger}
}

// Handle processes one call event.
func (h *CallEventsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var event CallEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if event.Payload.CallID == "" {
		http.Error(w, "call_id required", http.StatusBadRequest)
		return
	}

	switch event.EventType {
	case eventCallStarted:
		h.logger.Info("call event: started",
			"call_id", event.Payload.CallID,
			"caller", call.MaskNumber(event.Payload.CallerNumber),
		)
	case eventCallEnded:
		h.registry.Remove(event.Payload.CallID)
		h.logger.Info("call event: ended", "call_id", event.Payload.CallID)
	default:
		h.logger.Warn("call event: unknown type", "event_type", event.EventType)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
