package router

import (
	"net/http"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/handler"
	"vinzhub-stats-api/internal/metrics"
	"vinzhub-stats-api/internal/middleware"
	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	TelemetryHandler *handler.TelemetryHandler
	PlayerHandler    *handler.PlayerHandler
	ConfigHandler    *handler.ConfigHandler
	ControlHandler   *handler.ControlHandler
	AdminHandler     *handler.AdminHandler

	Auth            *middleware.Auth
	IngestRateLimit int

	// Metrics is nil when metrics are disabled.
	Metrics metrics.Provider
	Logger  zerolog.Logger
	Clock   quartz.Clock
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger, cfg.Clock))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics, cfg.Clock))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", middleware.HeaderRequestID,
			middleware.HeaderUserKey, middleware.HeaderWriteKey,
			middleware.HeaderReadKey, middleware.HeaderLoginKey,
		},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/health", cfg.Handler.Health)
		r.Get("/ready", cfg.Handler.Ready)
		r.Get("/api/status", cfg.Handler.Status)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	auth := cfg.Auth
	r.Route("/api", func(r chi.Router) {
		// Writes: identity and write secret
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity)
			r.Use(auth.RequireWriteKey)

			if cfg.TelemetryHandler != nil {
				r.With(middleware.RateLimitByUserKey(cfg.IngestRateLimit)).
					Post("/ingest", cfg.TelemetryHandler.Ingest)
			}
			if cfg.ConfigHandler != nil {
				r.Post("/configs", cfg.ConfigHandler.Publish)
			}
		})

		if cfg.ConfigHandler != nil {
			r.Get("/configs/{key}", cfg.ConfigHandler.Get)
		}

		// Caller-scoped reads: identity and read policy
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity)
			r.Use(auth.ReadPolicy)

			if cfg.TelemetryHandler != nil {
				r.Get("/stats", cfg.TelemetryHandler.Stats)
				r.Get("/history", cfg.TelemetryHandler.History)
			}
			if cfg.ControlHandler != nil {
				r.Route("/controls", func(r chi.Router) {
					r.Get("/state", cfg.ControlHandler.GetState)
					r.Post("/state", cfg.ControlHandler.SetState)
					r.Get("/commands", cfg.ControlHandler.DrainCommands)
					r.Post("/commands", cfg.ControlHandler.PushCommand)
				})
			}
		})

		// Cross-user reads: read policy only
		r.Group(func(r chi.Router) {
			r.Use(auth.ReadPolicy)

			if cfg.TelemetryHandler != nil {
				r.Get("/leaderboard", cfg.TelemetryHandler.Leaderboard)
			}
			if cfg.PlayerHandler != nil {
				r.Get("/player/{publicId}/stats", cfg.PlayerHandler.Stats)
				r.With(auth.RequireReadConfigured).Get("/players", cfg.PlayerHandler.Online)
			}
		})

		if cfg.AdminHandler != nil {
			r.With(auth.RequireLoginKey).Get("/admin/stats", cfg.AdminHandler.GetStats)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound(""))
	})

	return r
}
