// Package main provides the entrypoint for the WeatherWeS API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherwes/weatherwes/internal/airdata"
	"github.com/weatherwes/weatherwes/internal/airdata/openaq"
	"github.com/weatherwes/weatherwes/internal/api"
	"github.com/weatherwes/weatherwes/internal/api/middleware"
	"github.com/weatherwes/weatherwes/internal/database"
	"github.com/weatherwes/weatherwes/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "weatherwes-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting WeatherWeS API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Pick the cache store. Postgres when configured, otherwise an
	// in-process store for local development.
	store, cleanup, err := newStore(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer cleanup()

	// Initialize the OpenAQ client
	openaqClient := openaq.NewClient(openaq.ClientConfig{
		BaseURL: os.Getenv("OPENAQ_BASE_URL"),
		APIKey:  os.Getenv("OPENAQ_API_KEY"),
	})
	log.Info().Msg("OpenAQ client initialized")

	// Initialize the air data service
	airService := airdata.NewService(airdata.ServiceConfig{
		Store:          store,
		Upstream:       openaqClient,
		Logger:         log,
		LocationTTL:    durationFromEnv("LOCATION_TTL"),
		MeasurementTTL: durationFromEnv("MEASUREMENT_TTL"),
	})
	log.Info().Msg("air data service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		AirDataService: airService,
		AllowedOrigins: originsFromEnv(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// newStore connects to Postgres when DATABASE_URL or DB_HOST points at a
// database, applying the schema on startup. STORE=memory forces the
// in-process store.
func newStore(ctx context.Context, log zerolog.Logger) (airdata.Store, func(), error) {
	if os.Getenv("STORE") == "memory" {
		log.Warn().Msg("using in-memory store, cached data will not survive restarts")
		return airdata.NewMemoryStore(), func() {}, nil
	}

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return nil, nil, err
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	return airdata.NewPostgresStore(pool), pool.Close, nil
}

func durationFromEnv(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}

func originsFromEnv() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
