package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mindflowhq/sanctuary-engine/internal/http/handlers"
	httpmiddleware "github.com/mindflowhq/sanctuary-engine/internal/http/middleware"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Sessions           *handlers.SessionHandler
	AdminAudit         *handlers.AdminAuditHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-IP rate limit for message submission. Zero disables the limiter.
	MessageRatePerSecond float64
	MessageRateBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
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

	// Public endpoints
	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Session turn API
	if cfg.Sessions != nil {
		r.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Get("/", cfg.Sessions.GetSession)
			if cfg.MessageRatePerSecond > 0 {
				sr.With(httpmiddleware.RateLimit(cfg.MessageRatePerSecond, cfg.MessageRateBurst)).
					Post("/messages", cfg.Sessions.PostMessage)
			} else {
				sr.Post("/messages", cfg.Sessions.PostMessage)
			}
			sr.Post("/consent", cfg.Sessions.PostConsent)
			sr.Put("/region", cfg.Sessions.PutRegion)
			sr.Post("/end", cfg.Sessions.EndSession)
		})
	}

	// Admin routes (protected by HMAC JWT)
	if cfg.AdminAuthSecret != "" && cfg.AdminAudit != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/audit", cfg.AdminAudit.ListEvents)
		})
	}

	return r
}
