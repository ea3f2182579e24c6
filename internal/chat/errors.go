package chat

import "errors"

var (
	// ErrEmptyMessage is returned when the outgoing message is blank
	// after trimming whitespace.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrQuotaExceeded is returned when the patient has used up the
	// daily message allowance.
	ErrQuotaExceeded = errors.New("daily message limit reached")

	// ErrSendInFlight is returned when a send is attempted while a
	// previous send on the same session is still awaiting a reply.
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrAssistantUnavailable is returned when the language model could
	// not produce a reply.
	ErrAssistantUnavailable = errors.New("assistant is unavailable")
)
