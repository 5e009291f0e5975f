package booking

// ActionType is what the pipeline should do next for the booking flow.
type ActionType string

const (
	ActionAskField       ActionType = "ask_field"
	ActionInvokeFunction ActionType = "invoke_function"
	ActionDone           ActionType = "done"
)

// Action tells the caller what to ask or invoke next. PromptHint is guidance
// for the response generator, not verbatim speech.
type Action struct {
	Type       ActionType
	Field      string
	Function   string
	PromptHint string
}

// NextAction is a pure function of the current state and collected fields.
// It never mutates the session; the pipeline applies transitions after the
// suggested step actually happens.
func NextAction(s *Session) Action {
	f := s.Fields()
	switch s.State() {
	case StateInitial, StateCollectingDate:
		if f.Date == "" {
			return Action{Type: ActionAskField, Field: "date", PromptHint: "Ask what day the caller would like to come in."}
		}
		if f.Time == "" {
			return Action{Type: ActionAskField, Field: "time", PromptHint: "Ask what time of day works for them."}
		}
		return Action{Type: ActionInvokeFunction, Function: "check_slot_availability", PromptHint: "Check whether the requested slot is open."}
	case StateCollectingTime:
		if f.Time == "" {
			return Action{Type: ActionAskField, Field: "time", PromptHint: "Ask what time of day works for them."}
		}
		return Action{Type: ActionInvokeFunction, Function: "check_slot_availability", PromptHint: "Check whether the requested slot is open."}
	case StateCheckingAvailability:
		if !f.SlotChecked {
			return Action{Type: ActionInvokeFunction, Function: "check_slot_availability", PromptHint: "Check whether the requested slot is open."}
		}
		if !f.SlotAvailable {
			return Action{Type: ActionAskField, Field: "date", PromptHint: "That slot is taken; ask for another day or time."}
		}
		return Action{Type: ActionAskField, Field: "email", PromptHint: "Ask for an email address for the confirmation."}
	case StateCollectingEmail:
		if f.Email == "" {
			return Action{Type: ActionAskField, Field: "email", PromptHint: "Ask for an email address for the confirmation."}
		}
		return Action{Type: ActionInvokeFunction, Function: "send_verification_email", PromptHint: "Send the verification code and tell the caller to read it back."}
	case StateVerifyingEmail:
		if !f.EmailVerified {
			return Action{Type: ActionInvokeFunction, Function: "verify_email_code", PromptHint: "Ask for the code from the email and verify it."}
		}
		return Action{Type: ActionInvokeFunction, Function: "create_booking", PromptHint: "Everything is collected; create the booking."}
	case StateConfirmingBooking:
		return Action{Type: ActionInvokeFunction, Function: "create_booking", PromptHint: "Everything is collected; create the booking."}
	default:
		return Action{Type: ActionDone}
	}
}
