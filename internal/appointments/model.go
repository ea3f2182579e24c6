package appointments

import (
	"strings"
	"time"
)

// Category classifies an appointment.
type Category string

const (
	CategoryCheckup      Category = "checkup"
	CategoryEmergency    Category = "emergency"
	CategoryMentalHealth Category = "mental_health"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryCheckup, CategoryEmergency, CategoryMentalHealth:
		return true
	}
	return false
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Appointment is a patient's scheduled visit with a provider.
type Appointment struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Provider  string    `json:"provider"`
	Date      string    `json:"appointment_date"` // YYYY-MM-DD
	Time      string    `json:"appointment_time"` // HH:MM, 24-hour
	Category  Category  `json:"appointment_type"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Request carries the mutable fields for Create and Update.
type Request struct {
	Provider string   `json:"provider"`
	Date     string   `json:"appointment_date"`
	Time     string   `json:"appointment_time"`
	Category Category `json:"appointment_type"`
	Notes    string   `json:"notes"`
}

// Validate checks the request against booking rules. now anchors the
// "today or later" check so tests control the clock.
func (r *Request) Validate(now time.Time) error {
	if strings.TrimSpace(r.Provider) == "" {
		return ErrMissingProvider
	}
	if !r.Category.Valid() {
		return ErrInvalidCategory
	}
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return ErrInvalidDate
	}
	if _, err := time.Parse(timeLayout, r.Time); err != nil {
		return ErrInvalidTime
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return ErrPastDate
	}
	return nil
}
