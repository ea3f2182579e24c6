package messages

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

// Handler serves the provider messaging endpoints.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("messages: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Routes mounts the messaging endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/providers", h.ListProviders)
	r.Post("/", h.Send)
	r.Get("/unread", h.ListUnread)
	r.Put("/{messageID}/read", h.MarkRead)
	return r
}

// ListProviders handles GET /providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.repo.ListProviders(r.Context())
	if err != nil {
		h.logger.Error("list providers failed", "error", err)
		http.Error(w, "failed to list providers", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(providers)
}

// Send handles POST /.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg := &Message{
		PatientID:  patientID,
		ProviderID: req.ProviderID,
		Subject:    req.Subject,
		Body:       req.Body,
	}
	if err := h.repo.Send(r.Context(), msg); err != nil {
		h.logger.Error("send message failed", "patient_id", patientID, "error", err)
		http.Error(w, "failed to send message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

// ListUnread handles GET /unread.
func (h *Handler) ListUnread(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	msgs, err := h.repo.ListUnread(r.Context(), patientID)
	if err != nil {
		h.logger.Error("list unread failed", "patient_id", patientID, "error", err)
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

// MarkRead handles PUT /{messageID}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "messageID")
	if err := h.repo.MarkRead(r.Context(), id, patientID); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			http.Error(w, "message not found", http.StatusNotFound)
			return
		}
		h.logger.Error("mark read failed", "patient_id", patientID, "message_id", id, "error", err)
		http.Error(w, "failed to update message", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
