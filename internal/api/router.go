// Package api provides the HTTP API for WeatherWeS.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/weatherwes/weatherwes/internal/airdata"
	"github.com/weatherwes/weatherwes/internal/api/handler"
	"github.com/weatherwes/weatherwes/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	AirDataService *airdata.Service
	AllowedOrigins []string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "weatherwes-api"
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.SecurityHeaders) // Security headers
	r.Use(middleware.ContentTypeJSON) // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.AirDataService)
	airHandler := handler.NewAirDataHandler(cfg.AirDataService)

	// Endpoints that may reach the upstream provider get the stricter limit.
	upstreamRateLimit := middleware.RateLimitByIP(middleware.UpstreamRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (unlimited)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Live data endpoints
		r.Group(func(r chi.Router) {
			r.Use(upstreamRateLimit)
			r.Get("/locations/{city}", airHandler.GetLocationsByCity)
			r.Get("/locations", airHandler.SearchLocations)
			r.Get("/measurements/{locationId}", airHandler.GetMeasurements)
		})

		// Cache-only endpoints
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/stored-locations", airHandler.GetStoredLocations)
			r.Get("/stored-measurements/{locationName}", airHandler.GetStoredMeasurements)
			r.Get("/cities/suggest", airHandler.SuggestCities)
		})
	})

	return r
}
