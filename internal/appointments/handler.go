package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

// Handler handles HTTP requests for appointments.
type Handler struct {
	service  *Service
	feed     Feed
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new appointments handler.
func NewHandler(service *Service, feed Feed, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		feed:    feed,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth happens in middleware; the portal frontend may be served
			// from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes mounts the appointment endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/feed", h.StreamChanges)
	r.Put("/{appointmentID}", h.Update)
	r.Delete("/{appointmentID}", h.Cancel)
	return r
}

// List handles GET /api/portal/appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	out, err := h.service.List(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "patient_id", patientID)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// Create handles POST /api/portal/appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := h.service.Create(r.Context(), patientID, &req)
	if err != nil {
		h.writeServiceError(w, err, patientID, "create")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a)
}

// Update handles PUT /api/portal/appointments/{appointmentID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Update(r.Context(), patientID, chi.URLParam(r, "appointmentID"), &req); err != nil {
		h.writeServiceError(w, err, patientID, "update")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles DELETE /api/portal/appointments/{appointmentID}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	if err := h.service.Cancel(r.Context(), patientID, chi.URLParam(r, "appointmentID")); err != nil {
		h.writeServiceError(w, err, patientID, "cancel")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamChanges handles GET /api/portal/appointments/feed, pushing change
// events over a WebSocket until the client disconnects.
func (h *Handler) StreamChanges(w http.ResponseWriter, r *http.Request) {
	patientID, ok := identity.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}
	if h.feed == nil {
		http.Error(w, "change feed unavailable", http.StatusServiceUnavailable)
		return
	}

	events, cancel, err := h.feed.Subscribe(r.Context(), patientID)
	if err != nil {
		h.logger.Error("feed subscribe failed", "error", err, "patient_id", patientID)
		http.Error(w, "change feed unavailable", http.StatusServiceUnavailable)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err, "patient_id", patientID)
		return
	}
	defer conn.Close()

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, patientID, op string) {
	switch {
	case errors.Is(err, ErrMissingProvider),
		errors.Is(err, ErrInvalidCategory),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrPastDate),
		errors.Is(err, ErrInvalidTime):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrIdentityUnverified):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("appointment operation failed", "error", err, "patient_id", patientID, "op", op)
		http.Error(w, "appointment operation failed", http.StatusInternalServerError)
	}
}
