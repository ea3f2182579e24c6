package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

// Handler serves the conversational endpoints.
type Handler struct {
	sessions *SessionManager
	logger   *logging.Logger
}

// NewHandler builds a chat handler.
func NewHandler(sessions *SessionManager, logger *logging.Logger) *Handler {
	if sessions == nil {
		panic("chat: session manager cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sessions: sessions, logger: logger}
}

// Routes mounts the chat endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetConversation)
	r.Post("/", h.SendMessage)
	return r
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Reply     Turn `json:"reply"`
	Remaining int  `json:"remaining"`
}

type conversationResponse struct {
	Transcript []Turn `json:"transcript"`
	Remaining  int    `json:"remaining"`
	Limit      int    `json:"limit"`
}

// SendMessage handles POST /.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session := h.sessions.Session(patientID)
	reply, err := session.Send(r.Context(), req.Message)
	if err != nil {
		h.writeSendError(w, patientID, err)
		return
	}

	remaining, err := session.Remaining(r.Context())
	if err != nil {
		h.logger.Warn("quota read after send failed", "patient_id", patientID, "error", err)
		remaining = 0
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sendMessageResponse{Reply: reply, Remaining: remaining})
}

// GetConversation handles GET /.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session := h.sessions.Session(patientID)
	remaining, err := session.Remaining(r.Context())
	if err != nil {
		h.logger.Error("quota read failed", "patient_id", patientID, "error", err)
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversationResponse{
		Transcript: session.Transcript(),
		Remaining:  remaining,
		Limit:      h.sessions.cfg.DailyLimit,
	})
}

func (h *Handler) writeSendError(w http.ResponseWriter, patientID string, err error) {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, ErrSendInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrAssistantUnavailable):
		http.Error(w, ErrAssistantUnavailable.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("send message failed", "patient_id", patientID, "error", err)
		http.Error(w, "failed to send message", http.StatusInternalServerError)
	}
}
