package avatars

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

// maxAvatarBytes caps avatar uploads at 5 MiB.
const maxAvatarBytes = 5 << 20

// Handler serves the avatar upload endpoint.
type Handler struct {
	store    *Store
	patients patients.Repository
	logger   *logging.Logger
}

func NewHandler(store *Store, repo patients.Repository, logger *logging.Logger) *Handler {
	if store == nil {
		panic("avatars: store cannot be nil")
	}
	if repo == nil {
		panic("avatars: patients repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, patients: repo, logger: logger}
}

// Routes mounts the avatar endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Upload)
	return r
}

type uploadResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// Upload handles POST /. The avatar arrives as the "avatar" part of a
// multipart form.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		http.Error(w, "avatar file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		http.Error(w, "avatar must be an image", http.StatusUnsupportedMediaType)
		return
	}

	url, err := h.store.Upload(r.Context(), patientID, contentType, file)
	if err != nil {
		h.logger.Error("avatar upload failed", "patient_id", patientID, "error", err)
		http.Error(w, "failed to upload avatar", http.StatusInternalServerError)
		return
	}

	if err := h.patients.UpdateProfile(r.Context(), patientID, "", url); err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("avatar url save failed", "patient_id", patientID, "error", err)
		http.Error(w, "failed to save avatar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(uploadResponse{AvatarURL: url})
}
