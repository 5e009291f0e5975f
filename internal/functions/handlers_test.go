package functions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voiceline-ai/internal/booking"
	"github.com/wolfman30/voiceline-ai/internal/call"
)

type fakeSlots struct {
	available bool
	err       error
}

func (f *fakeSlots) SlotAvailable(ctx context.Context, companyID, date, timeOfDay string) (bool, error) {
	return f.available, f.err
}

type fakeVerifier struct {
	sentTo    string
	validCode string
}

func (f *fakeVerifier) SendCode(ctx context.Context, email string) error {
	f.sentTo = email
	return nil
}

func (f *fakeVerifier) CheckCode(ctx context.Context, email, code string) (bool, error) {
	return code == f.validCode, nil
}

type fakeBooker struct {
	ref string
	err error
}

func (f *fakeBooker) Create(ctx context.Context, companyID string, fields booking.Fields) (string, error) {
	return f.ref, f.err
}

func TestBookingFlowThroughHandlers(t *testing.T) {
	verifier := &fakeVerifier{validCode: "482913"}
	h := &Handlers{
		Slots:    &fakeSlots{available: true},
		Verifier: verifier,
		Booker:   &fakeBooker{ref: "BK-1001"},
	}
	sess := call.NewSession("call-1", "co-1", "")
	t.Cleanup(sess.End)
	ctx := context.Background()

	text, err := h.CheckSlotAvailability(ctx, map[string]any{"date": "tomorrow", "time": "2pm"}, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "open")
	assert.Equal(t, booking.StateCollectingEmail, sess.Booking().State())

	text, err = h.SendVerificationEmail(ctx, map[string]any{"email": "caller@example.com"}, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "verification code")
	assert.Equal(t, "caller@example.com", verifier.sentTo)
	assert.Equal(t, booking.StateVerifyingEmail, sess.Booking().State())

	text, err = h.VerifyEmailCode(ctx, map[string]any{"code": "482913"}, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "verified")
	assert.Equal(t, booking.StateConfirmingBooking, sess.Booking().State())

	text, err = h.CreateBooking(ctx, nil, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "BK-1001")
	assert.Equal(t, booking.StateCompleted, sess.Booking().State())
}

func TestCheckSlotUnavailable(t *testing.T) {
	h := &Handlers{Slots: &fakeSlots{available: false}}
	sess := call.NewSession("call-1", "co-1", "")
	t.Cleanup(sess.End)

	text, err := h.CheckSlotAvailability(context.Background(), map[string]any{"date": "friday", "time": "3pm"}, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "taken")
	assert.False(t, sess.Booking().Fields().SlotAvailable)
}

func TestCheckSlotMissingFields(t *testing.T) {
	h := &Handlers{}
	sess := call.NewSession("call-1", "co-1", "")
	t.Cleanup(sess.End)

	text, err := h.CheckSlotAvailability(context.Background(), map[string]any{"date": "friday"}, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "date and time")
}

func TestVerifyWrongCode(t *testing.T) {
	h := &Handlers{Slots: &fakeSlots{available: true}, Verifier: &fakeVerifier{validCode: "111111"}}
	sess := call.NewSession("call-1", "co-1", "")
	t.Cleanup(sess.End)
	ctx := context.Background()

	_, err := h.CheckSlotAvailability(ctx, map[string]any{"date": "friday", "time": "3pm"}, sess)
	require.NoError(t, err)
	_, err = h.SendVerificationEmail(ctx, map[string]any{"email": "a@example.com"}, sess)
	require.NoError(t, err)

	text, err := h.VerifyEmailCode(ctx, map[string]any{"code": "999999"}, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "doesn't match")
	assert.False(t, sess.Booking().Fields().EmailVerified)
}

func TestCreateBookingRefusesPartialData(t *testing.T) {
	h := &Handlers{Booker: &fakeBooker{ref: "BK-1"}}
	sess := call.NewSession("call-1", "co-1", "")
	t.Cleanup(sess.End)

	text, err := h.CreateBooking(context.Background(), nil, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "missing")
	assert.Equal(t, booking.StateInitial, sess.Booking().State())
}

func TestCreateBookingDownstreamFailure(t *testing.T) {
	h := &Handlers{
		Slots:    &fakeSlots{available: true},
		Verifier: &fakeVerifier{validCode: "1"},
		Booker:   &fakeBooker{err: errors.New("calendar api down")},
	}
	sess := call.NewSession("call-1", "co-1", "")
	t.Cleanup(sess.End)
	ctx := context.Background()

	_, err := h.CheckSlotAvailability(ctx, map[string]any{"date": "friday", "time": "3pm"}, sess)
	require.NoError(t, err)
	_, err = h.SendVerificationEmail(ctx, map[string]any{"email": "a@example.com"}, sess)
	require.NoError(t, err)
	_, err = h.VerifyEmailCode(ctx, map[string]any{"code": "1"}, sess)
	require.NoError(t, err)

	_, err = h.CreateBooking(ctx, nil, sess)
	assert.Error(t, err)
	assert.Equal(t, booking.StateFailed, sess.Booking().State())
}

func TestCreateTicketWithoutCollaborator(t *testing.T) {
	h := &Handlers{}
	sess := call.NewSession("call-1", "co-1", "")
	t.Cleanup(sess.End)

	text, err := h.CreateTicket(context.Background(), map[string]any{"summary": "billing question"}, sess)
	require.NoError(t, err)
	assert.Contains(t, text, "TKT-")
}

func TestRegisterAllCoversDefinitions(t *testing.T) {
	reg := NewRegistry()
	(&Handlers{}).RegisterAll(reg)

	for _, def := range Definitions() {
		_, ok := reg.Lookup(def.Name)
		assert.True(t, ok, "definition %s has no handler", def.Name)
	}
}
