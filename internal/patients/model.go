package patients

import (
	"strings"
	"time"
)

// Patient represents a portal patient record, including the onboarding
// questionnaire answers used for AI recommendations.
type Patient struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	FullName            string    `json:"full_name"`
	AvatarURL           string    `json:"avatar_url,omitempty"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	OnboardingAnswers
}

// OnboardingAnswers holds the questionnaire responses collected after
// sign-up.
type OnboardingAnswers struct {
	Age                    int    `json:"age"`
	CityState              string `json:"city_state_of_residence"`
	FamilyHealthConditions string `json:"family_health_conditions"`
	CurrentMedications     string `json:"current_medications"`
	PhysicalActivity       string `json:"physical_activity"`
	MentalWellbeing        int    `json:"mental_wellbeing"`
}

// Validate checks the questionnaire answers.
func (a *OnboardingAnswers) Validate() error {
	if a.Age <= 0 || a.Age > 130 {
		return ErrInvalidAge
	}
	if a.MentalWellbeing < 1 || a.MentalWellbeing > 10 {
		return ErrInvalidWellbeing
	}
	if strings.TrimSpace(a.CityState) == "" {
		return ErrMissingCityState
	}
	return nil
}

// CreatePatientRequest is used by the auth flow to provision a record.
type CreatePatientRequest struct {
	Email        string
	PasswordHash string
	FullName     string
}

// Validate validates the create patient request.
func (r *CreatePatientRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@") {
		return ErrInvalidEmail
	}
	if r.PasswordHash == "" {
		return ErrMissingPasswordHash
	}
	if strings.TrimSpace(r.FullName) == "" {
		return ErrInvalidName
	}
	return nil
}
