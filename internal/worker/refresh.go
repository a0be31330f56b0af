package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherwes/weatherwes/internal/airdata"
)

// LocationRefresher fetches fresh location data for a city, updating the
// cache as a side effect.
type LocationRefresher interface {
	FetchLocations(ctx context.Context, city string, forceRefresh bool) ([]airdata.Location, error)
}

// RefreshJob re-fetches a configured list of cities so caches stay warm.
type RefreshJob struct {
	config  RefreshConfig
	logger  zerolog.Logger
	svc     LocationRefresher
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns          int64
	SuccessfulCities   int64
	FailedCities       int64
	LocationsRefreshed int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Service LocationRefresher
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Cities) == 0 {
		config = DefaultRefreshConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		svc:     cfg.Service,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one refresh cycle.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalCities int
	Successful  int
	Failed      int
	Locations   int
	Errors      []RefreshError
}

// RefreshError represents an error refreshing a single city.
type RefreshError struct {
	City  string
	Error string
}

// Run executes one refresh cycle over all configured cities.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime:   startTime,
		TotalCities: len(j.config.Cities),
	}

	j.logger.Info().
		Int("cities", result.TotalCities).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache refresh cycle")

	citiesChan := make(chan string, len(j.config.Cities))
	resultsChan := make(chan cityResult, len(j.config.Cities))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, citiesChan, resultsChan)
		}()
	}

	for _, city := range j.config.Cities {
		citiesChan <- city
	}
	close(citiesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for cr := range resultsChan {
		if cr.err == nil {
			result.Successful++
			result.Locations += cr.locations
		} else {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				City:  cr.city,
				Error: cr.err.Error(),
			})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("locations", result.Locations).
		Msg("cache refresh cycle completed")

	return result
}

type cityResult struct {
	city      string
	locations int
	err       error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, cities <-chan string, results chan<- cityResult) {
	for city := range cities {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.refreshCity(ctx, city)
		}
	}
}

func (j *RefreshJob) refreshCity(ctx context.Context, city string) cityResult {
	if j.svc == nil {
		return cityResult{city: city}
	}

	cityCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	locs, err := j.svc.FetchLocations(cityCtx, city, true)
	if errors.Is(err, airdata.ErrNoLocations) {
		// A city without stations is not a refresh failure.
		j.logger.Debug().Str("city", city).Msg("no stations for city")
		return cityResult{city: city}
	}
	if err != nil {
		j.logger.Warn().Err(err).Str("city", city).Msg("city refresh failed")
		return cityResult{city: city, err: err}
	}

	return cityResult{city: city, locations: len(locs)}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulCities += int64(result.Successful)
	j.metrics.FailedCities += int64(result.Failed)
	j.metrics.LocationsRefreshed += int64(result.Locations)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulCities:    j.metrics.SuccessfulCities,
		FailedCities:        j.metrics.FailedCities,
		LocationsRefreshed:  j.metrics.LocationsRefreshed,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map, for the worker's
// status endpoint.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":            m.TotalRuns,
		"successful_cities":     m.SuccessfulCities,
		"failed_cities":         m.FailedCities,
		"locations_refreshed":   m.LocationsRefreshed,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
