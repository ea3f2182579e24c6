package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/havenhealth/patient-portal/internal/appointments"
	"github.com/havenhealth/patient-portal/internal/auth"
	"github.com/havenhealth/patient-portal/internal/avatars"
	"github.com/havenhealth/patient-portal/internal/chat"
	httpmiddleware "github.com/havenhealth/patient-portal/internal/http/middleware"
	"github.com/havenhealth/patient-portal/internal/messages"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/internal/recommendations"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	AuthHandler            *auth.Handler
	PatientsHandler        *patients.Handler
	AppointmentsHandler    *appointments.Handler
	ChatHandler            *chat.Handler
	RecommendationsHandler *recommendations.Handler
	MessagesHandler        *messages.Handler
	AvatarsHandler         *avatars.Handler

	MetricsHandler http.Handler

	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates the chi router with all portal routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AuthHandler != nil {
			public.Mount("/api/auth", cfg.AuthHandler.Routes())
		}
	})

	// Authenticated patient endpoints.
	r.Route("/api/portal", func(portal chi.Router) {
		portal.Use(httpmiddleware.RequirePatient(cfg.JWTSecret))

		if cfg.PatientsHandler != nil {
			portal.Get("/profile", cfg.PatientsHandler.GetProfile)
			portal.Put("/profile", cfg.PatientsHandler.UpdateProfile)
			portal.Post("/onboarding", cfg.PatientsHandler.SubmitOnboarding)
		}
		if cfg.AppointmentsHandler != nil {
			portal.Mount("/appointments", cfg.AppointmentsHandler.Routes())
		}
		if cfg.ChatHandler != nil {
			portal.Mount("/chat", cfg.ChatHandler.Routes())
		}
		if cfg.RecommendationsHandler != nil {
			portal.Mount("/recommendations", cfg.RecommendationsHandler.Routes())
		}
		if cfg.MessagesHandler != nil {
			portal.Mount("/messages", cfg.MessagesHandler.Routes())
		}
		if cfg.AvatarsHandler != nil {
			portal.Mount("/avatar", cfg.AvatarsHandler.Routes())
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
