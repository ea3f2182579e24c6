package messages

import "errors"

var (
	ErrMissingProvider  = errors.New("provider is required")
	ErrMissingSubject   = errors.New("subject is required")
	ErrMissingBody      = errors.New("message body is required")
	ErrProviderNotFound = errors.New("provider not found")
	ErrMessageNotFound  = errors.New("message not found")
)
