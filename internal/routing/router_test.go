package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/voiceline-ai/internal/llm"
)

type scriptedLLM struct {
	text   string
	err    error
	calls  int
	gotReq llm.Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.calls++
	s.gotReq = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.text}, nil
}

var roster = []Candidate{
	{ID: "booking-agent", Name: "Booking", Description: "schedules and reschedules appointments"},
	{ID: "billing-agent", Name: "Billing", Description: "invoices, payments, refunds"},
}

func TestRouteExactID(t *testing.T) {
	r := NewRouter(&scriptedLLM{text: `{"agent":"booking-agent"}`}, "", nil)
	got := r.Route(context.Background(), "I need to book a facial", "", roster)
	assert.Equal(t, "booking-agent", got)
}

func TestRouteByName(t *testing.T) {
	r := NewRouter(&scriptedLLM{text: `{"agent":"Billing"}`}, "", nil)
	got := r.Route(context.Background(), "my invoice is wrong", "", roster)
	assert.Equal(t, "billing-agent", got)
}

func TestRouteUniquePrefix(t *testing.T) {
	r := NewRouter(&scriptedLLM{text: `{"agent":"book"}`}, "", nil)
	got := r.Route(context.Background(), "book me in", "", roster)
	assert.Equal(t, "booking-agent", got)
}

func TestRouteAmbiguousPrefixStays(t *testing.T) {
	ambiguous := []Candidate{
		{ID: "billing-agent", Name: "Billing"},
		{ID: "billboard-agent", Name: "Billboards"},
	}
	r := NewRouter(&scriptedLLM{text: `{"agent":"bill"}`}, "", nil)
	got := r.Route(context.Background(), "about my bill", "billboard-agent", ambiguous)
	assert.Equal(t, "billboard-agent", got)
}

func TestRouteMasterSentinel(t *testing.T) {
	r := NewRouter(&scriptedLLM{text: `{"agent":"MASTER"}`}, "", nil)
	got := r.Route(context.Background(), "what's the weather", "booking-agent", roster)
	assert.Equal(t, "", got)
}

func TestRouteEmptyRosterSkipsModel(t *testing.T) {
	fake := &scriptedLLM{text: `{"agent":"MASTER"}`}
	r := NewRouter(fake, "", nil)
	got := r.Route(context.Background(), "anything", "", nil)
	assert.Equal(t, "", got)
	assert.Zero(t, fake.calls, "no roster means nothing to classify")
}

func TestRouteModelFailureStays(t *testing.T) {
	r := NewRouter(&scriptedLLM{err: errors.New("model down")}, "", nil)
	got := r.Route(context.Background(), "I want to reschedule", "booking-agent", roster)
	assert.Equal(t, "booking-agent", got)
}

func TestRouteUnknownAgentStays(t *testing.T) {
	r := NewRouter(&scriptedLLM{text: `{"agent":"concierge"}`}, "", nil)
	got := r.Route(context.Background(), "hello", "billing-agent", roster)
	assert.Equal(t, "billing-agent", got)
}

func TestRouteUnparseableStays(t *testing.T) {
	r := NewRouter(&scriptedLLM{text: "the booking agent seems right"}, "", nil)
	got := r.Route(context.Background(), "hello", "", roster)
	assert.Equal(t, "", got)
}

func TestRoutePromptCarriesRosterAndCurrent(t *testing.T) {
	fake := &scriptedLLM{text: `{"agent":"MASTER"}`}
	r := NewRouter(fake, "", nil)
	r.Route(context.Background(), "who handles refunds?", "booking-agent", roster)

	prompt := fake.gotReq.Messages[0].Content
	assert.Contains(t, prompt, "billing-agent")
	assert.Contains(t, prompt, "booking-agent")
	assert.Contains(t, prompt, "refunds")
}
