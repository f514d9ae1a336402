package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netinv/netinv/internal/config"
	"github.com/netinv/netinv/internal/middleware"
)

// NewRouter creates and configures the API router
func NewRouter(cfg *config.Config, deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	// CORS (if enabled)
	if cfg.CORS.Enabled {
		r.Use(middleware.CORS(
			cfg.CORS.AllowedOrigins,
			cfg.CORS.AllowedMethods,
			cfg.CORS.AllowedHeaders,
			cfg.CORS.MaxAgeSeconds,
		))
	}

	// Public routes (no auth required)
	r.Get("/health", deps.Health)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoint
		r.Post("/login", deps.Login)

		// Protected routes (require JWT)
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(deps.Auth))

			r.Get("/inventory", deps.Inventory)
			r.Get("/architectures", deps.Architectures)
			if deps.ControllerCredential != nil {
				r.Get("/controller-token", deps.ControllerToken)
			}
		})
	})

	return r
}
