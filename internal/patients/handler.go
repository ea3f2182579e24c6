package patients

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

// Handler handles HTTP requests for patient records.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new patients handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// GetProfile handles GET /api/portal/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	patient, err := h.repo.GetByID(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load patient", "error", err, "patient_id", patientID)
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(patient)
}

// UpdateProfileRequest is the body for profile updates.
type UpdateProfileRequest struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// UpdateProfile handles PUT /api/portal/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateProfile(r.Context(), patientID, req.FullName, req.AvatarURL); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update profile", "error", err, "patient_id", patientID)
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitOnboarding handles POST /api/portal/onboarding.
func (h *Handler) SubmitOnboarding(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	var answers OnboardingAnswers
	if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.SubmitOnboarding(r.Context(), patientID, &answers); err != nil {
		switch {
		case errors.Is(err, ErrPatientNotFound):
			http.Error(w, "patient not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidAge), errors.Is(err, ErrInvalidWellbeing), errors.Is(err, ErrMissingCityState):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("failed to save onboarding", "error", err, "patient_id", patientID)
			http.Error(w, "failed to save onboarding", http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("onboarding completed", "patient_id", patientID)
	w.WriteHeader(http.StatusNoContent)
}
