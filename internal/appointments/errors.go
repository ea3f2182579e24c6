package appointments

import "errors"

var (
	// ErrMissingProvider is returned when no provider is named.
	ErrMissingProvider = errors.New("provider is required")

	// ErrInvalidCategory is returned for an unknown appointment type.
	ErrInvalidCategory = errors.New("appointment type must be checkup, emergency or mental_health")

	// ErrInvalidDate is returned when the date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("appointment date must be YYYY-MM-DD")

	// ErrPastDate is returned when the date is before today.
	ErrPastDate = errors.New("appointment date must be today or later")

	// ErrInvalidTime is returned when the time is not a 24-hour HH:MM value.
	ErrInvalidTime = errors.New("appointment time must be HH:MM")

	// ErrIdentityUnverified is returned when the acting patient has no record.
	ErrIdentityUnverified = errors.New("patient identity could not be verified")
)
