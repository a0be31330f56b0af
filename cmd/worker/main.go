// Package main provides the entrypoint for the WeatherWeS cache refresh worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherwes/weatherwes/internal/airdata"
	"github.com/weatherwes/weatherwes/internal/airdata/openaq"
	"github.com/weatherwes/weatherwes/internal/database"
	"github.com/weatherwes/weatherwes/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "weatherwes-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting WeatherWeS worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store: the worker shares the cache database with the API.
	store, cleanup, err := newStore(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer cleanup()

	openaqClient := openaq.NewClient(openaq.ClientConfig{
		BaseURL: os.Getenv("OPENAQ_BASE_URL"),
		APIKey:  os.Getenv("OPENAQ_API_KEY"),
	})

	airService := airdata.NewService(airdata.ServiceConfig{
		Store:    store,
		Upstream: openaqClient,
		Logger:   log,
	})

	refreshCfg := worker.ConfigFromEnv()
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  refreshCfg,
		Logger:  log,
		Service: airService,
	})

	// Health and status endpoints for the container runtime.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(job.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Refresh loop: one cycle at startup, then on every tick.
	go func() {
		log.Info().
			Strs("cities", refreshCfg.Cities).
			Dur("interval", refreshCfg.Interval).
			Msg("refresh loop started")

		job.Run(ctx)

		ticker := time.NewTicker(refreshCfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job.Run(ctx)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// newStore mirrors the API's store selection so both processes share cache
// semantics.
func newStore(ctx context.Context, log zerolog.Logger) (airdata.Store, func(), error) {
	if os.Getenv("STORE") == "memory" {
		log.Warn().Msg("using in-memory store, refreshed data is lost on restart")
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
		Str("database", dbConfig.Database).
		Msg("database connected")

	return airdata.NewPostgresStore(pool), pool.Close, nil
}
