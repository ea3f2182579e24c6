package patients

import "errors"

var (
	// ErrPatientNotFound is returned when no record matches the lookup.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidEmail is returned when the email is missing or malformed.
	ErrInvalidEmail = errors.New("a valid email is required")

	// ErrInvalidName is returned when the full name is missing.
	ErrInvalidName = errors.New("full name is required")

	// ErrMissingPasswordHash is returned when no credential is supplied.
	ErrMissingPasswordHash = errors.New("password hash is required")

	// ErrInvalidAge is returned when the questionnaire age is out of range.
	ErrInvalidAge = errors.New("age must be between 1 and 130")

	// ErrInvalidWellbeing is returned when the wellbeing rating is out of range.
	ErrInvalidWellbeing = errors.New("mental wellbeing must be between 1 and 10")

	// ErrMissingCityState is returned when the residence answer is empty.
	ErrMissingCityState = errors.New("city and state of residence is required")
)
