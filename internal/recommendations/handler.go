package recommendations

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

// Handler serves the recommendations endpoint.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("recommendations: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the recommendations endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Generate)
	return r
}

type recommendationsResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Generate handles GET /.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	recs, err := h.service.Generate(r.Context(), patientID)
	if err != nil {
		switch {
		case errors.Is(err, patients.ErrPatientNotFound):
			http.Error(w, "patient not found", http.StatusNotFound)
		case errors.Is(err, ErrOnboardingIncomplete):
			http.Error(w, ErrOnboardingIncomplete.Error(), http.StatusConflict)
		case errors.Is(err, ErrGenerationFailed):
			http.Error(w, ErrGenerationFailed.Error(), http.StatusBadGateway)
		default:
			h.logger.Error("generate recommendations failed", "patient_id", patientID, "error", err)
			http.Error(w, "failed to generate recommendations", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recommendationsResponse{Recommendations: recs})
}
