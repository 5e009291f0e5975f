package functions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/voiceline-ai/internal/booking"
	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/internal/llm"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// SlotChecker answers whether a requested appointment slot is open.
type SlotChecker interface {
	SlotAvailable(ctx context.Context, companyID, date, timeOfDay string) (bool, error)
}

// EmailVerifier sends and checks one-time verification codes.
type EmailVerifier interface {
	SendCode(ctx context.Context, email string) error
	CheckCode(ctx context.Context, email, code string) (bool, error)
}

// Booker creates the booking once every field is collected and verified.
type Booker interface {
	Create(ctx context.Context, companyID string, fields booking.Fields) (string, error)
}

// TicketCreator files a support ticket and returns its reference.
type TicketCreator interface {
	Create(ctx context.Context, companyID, callerNumber, summary string) (string, error)
}

// Handlers bundles the standard call capabilities. Collaborators may be nil;
// a nil collaborator degrades that capability to an apology at execute time
// via the handler's own error path.
type Handlers struct {
	Slots    SlotChecker
	Verifier EmailVerifier
	Booker   Booker
	Tickets  TicketCreator
	Logger   *logging.Logger
}

// RegisterAll wires every handler into the registry.
func (h *Handlers) RegisterAll(reg *Registry) {
	reg.Register("create_ticket", h.CreateTicket)
	reg.Register("transfer_call", h.TransferCall)
	reg.Register("check_slot_availability", h.CheckSlotAvailability)
	reg.Register("send_verification_email", h.SendVerificationEmail)
	reg.Register("verify_email_code", h.VerifyEmailCode)
	reg.Register("create_booking", h.CreateBooking)
}

// Definitions returns the tool schemas advertised to the response model.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        "create_ticket",
			Description: "File a support ticket for an issue that needs human follow-up.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{"type": "string", "description": "One-sentence description of the issue"},
				},
				"required": []string{"summary"},
			},
		},
		{
			Name:        "transfer_call",
			Description: "Transfer the caller to a human. Use only when the caller asks for a person or nothing else can help.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "check_slot_availability",
			Description: "Check whether the requested appointment date and time are open.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date": map[string]any{"type": "string", "description": "Requested date as the caller said it"},
					"time": map[string]any{"type": "string", "description": "Requested time as the caller said it"},
				},
				"required": []string{"date", "time"},
			},
		},
		{
			Name:        "send_verification_email",
			Description: "Send a verification code to the caller's email before booking.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"email": map[string]any{"type": "string"},
				},
				"required": []string{"email"},
			},
		},
		{
			Name:        "verify_email_code",
			Description: "Check the verification code the caller read back.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{"type": "string"},
				},
				"required": []string{"code"},
			},
		},
		{
			Name:        "create_booking",
			Description: "Create the appointment once date, time, and a verified email are all collected.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// CreateTicket files a support ticket.
func (h *Handlers) CreateTicket(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
	summary := stringArg(args, "summary")
	if summary == "" {
		summary = "caller issue reported during voice call"
	}

	ref := ""
	if h.Tickets != nil {
		var err error
		ref, err = h.Tickets.Create(ctx, sess.CompanyID, sess.CallerNumber, summary)
		if err != nil {
			return "", fmt.Errorf("create ticket: %w", err)
		}
	} else {
		ref = "TKT-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return fmt.Sprintf("I've created ticket %s for you. Someone from the team will follow up shortly.", ref), nil
}

// TransferCall hands the call to a human. The actual transfer happens at the
// telephony layer; this handler only produces the hand-off sentence.
func (h *Handlers) TransferCall(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
	return "Of course, let me transfer you to a member of our team. One moment please.", nil
}

// CheckSlotAvailability checks the requested slot and advances the booking
// flow accordingly.
func (h *Handlers) CheckSlotAvailability(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
	b := sess.Booking()
	if date := stringArg(args, "date"); date != "" {
		b.SetDate(date)
	}
	if timeOfDay := stringArg(args, "time"); timeOfDay != "" {
		b.SetTime(timeOfDay)
	}
	fields := b.Fields()
	if fields.Date == "" || fields.Time == "" {
		return "I still need a date and time before I can check availability. When would you like to come in?", nil
	}

	if b.State() == booking.StateInitial {
		if err := b.Transition(booking.StateCollectingDate, "booking intent detected"); err != nil {
			return "", err
		}
	}
	if b.State() == booking.StateCollectingDate || b.State() == booking.StateCollectingTime {
		if err := b.Transition(booking.StateCheckingAvailability, "date and time collected"); err != nil {
			return "", err
		}
	}

	available := true
	if h.Slots != nil {
		var err error
		available, err = h.Slots.SlotAvailable(ctx, sess.CompanyID, fields.Date, fields.Time)
		if err != nil {
			return "", fmt.Errorf("check slot: %w", err)
		}
	}
	b.RecordSlotCheck(available)

	if !available {
		return fmt.Sprintf("I'm sorry, %s at %s is already taken. Is there another day or time that works?", fields.Date, fields.Time), nil
	}
	if err := b.Transition(booking.StateCollectingEmail, "slot available"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Good news, %s at %s is open. Could I get your email address for the confirmation?", fields.Date, fields.Time), nil
}

// SendVerificationEmail records the email and sends a code.
func (h *Handlers) SendVerificationEmail(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
	email := stringArg(args, "email")
	if email == "" {
		return "I didn't catch your email address. Could you spell it out for me?", nil
	}

	b := sess.Booking()
	b.SetEmail(email)
	if h.Verifier != nil {
		if err := h.Verifier.SendCode(ctx, email); err != nil {
			return "", fmt.Errorf("send verification: %w", err)
		}
	}
	if b.State() == booking.StateCollectingEmail {
		if err := b.Transition(booking.StateVerifyingEmail, "verification code sent"); err != nil {
			return "", err
		}
	}
	return "I've sent a verification code to your email. Could you read it back to me when you have it?", nil
}

// VerifyEmailCode checks the code and, on success, moves the flow to
// confirmation.
func (h *Handlers) VerifyEmailCode(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
	code := stringArg(args, "code")
	b := sess.Booking()
	email := b.Fields().Email
	if email == "" {
		return "I don't have your email on file yet. Could you give me your email address first?", nil
	}

	ok := true
	if h.Verifier != nil {
		var err error
		ok, err = h.Verifier.CheckCode(ctx, email, code)
		if err != nil {
			return "", fmt.Errorf("verify code: %w", err)
		}
	}
	if !ok {
		return "That code doesn't match what I sent. Could you double-check and read it again?", nil
	}

	b.MarkEmailVerified()
	if b.State() == booking.StateVerifyingEmail {
		if err := b.Transition(booking.StateConfirmingBooking, "email verified"); err != nil {
			return "", err
		}
	}
	return "Your email is verified. Shall I go ahead and confirm the appointment?", nil
}

// CreateBooking creates the appointment. Partial data never produces a
// booking attempt.
func (h *Handlers) CreateBooking(ctx context.Context, args map[string]any, sess *call.Session) (string, error) {
	b := sess.Booking()
	if !b.CanCreateBooking() {
		return "I'm missing a few details before I can book that. Let's finish collecting them first.", nil
	}

	fields := b.Fields()
	ref := ""
	if h.Booker != nil {
		var err error
		ref, err = h.Booker.Create(ctx, sess.CompanyID, fields)
		if err != nil {
			if terr := b.Transition(booking.StateFailed, "booking call failed"); terr != nil && h.Logger != nil {
				h.Logger.Warn("functions: booking failure transition rejected", "error", terr)
			}
			return "", fmt.Errorf("create booking: %w", err)
		}
	}
	if err := b.Transition(booking.StateCompleted, "booking created"); err != nil {
		return "", err
	}

	if ref != "" {
		return fmt.Sprintf("You're all set for %s at %s. Your confirmation number is %s and a confirmation email is on its way.", fields.Date, fields.Time, ref), nil
	}
	return fmt.Sprintf("You're all set for %s at %s. A confirmation email is on its way.", fields.Date, fields.Time), nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
