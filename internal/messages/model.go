package messages

import (
	"strings"
	"time"
)

// Provider is a care provider a patient can message.
type Provider struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty"`
}

// Message is one note sent from a patient to a provider.
type Message struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	ProviderID string    `json:"provider_id"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	SentAt     time.Time `json:"sent_at"`
}

// SendRequest carries a new message.
type SendRequest struct {
	ProviderID string `json:"provider_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// Validate checks the outgoing message.
func (r *SendRequest) Validate() error {
	if strings.TrimSpace(r.ProviderID) == "" {
		return ErrMissingProvider
	}
	if strings.TrimSpace(r.Subject) == "" {
		return ErrMissingSubject
	}
	if strings.TrimSpace(r.Body) == "" {
		return ErrMissingBody
	}
	return nil
}
