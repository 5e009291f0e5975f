package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/voiceline-ai/internal/call"
)

func postEvent(h *CallEventsHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telephony/call", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestCallEndedRemovesSession(t *testing.T) {
	registry := call.NewRegistry()
	sess := call.NewSession("call-1", "co-1", "")
	registry.Add(sess)

	ended := false
	sess.OnEnd(func() { ended = true })

	h := NewCallEventsHandler(registry, nil)
	rec := postEvent(h, `{"event_type":"call.ended","payload":{"call_id":"call-1"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, registry.Get("call-1"))
	assert.True(t, ended)
}

func TestCallStartedAccepted(t *testing.T) {
	h := NewCallEventsHandler(call.NewRegistry(), nil)
	rec := postEvent(h, `{"event_type":"call.started","payload":{"call_id":"call-1","from":"+15551234567"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownEventStillAcknowledged(t *testing.T) {
	h := NewCallEventsHandler(call.NewRegistry(), nil)
	rec := postEvent(h, `{"event_type":"call.recorded","payload":{"call_id":"call-1"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRejectsBadPayloads(t *testing.T) {
	h := NewCallEventsHandler(call.NewRegistry(), nil)

	rec := postEvent(h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postEvent(h, `{"event_type":"call.ended","payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
