// Package worker provides background cache refresh for WeatherWeS.
package worker

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RefreshConfig holds configuration for the cache refresh job.
type RefreshConfig struct {
	// Cities to refresh each cycle. If empty, DefaultRefreshCities is used.
	Cities []string

	// Concurrency is the number of cities refreshed in parallel.
	// Default: 3
	Concurrency int

	// Timeout bounds each per-city refresh.
	// Default: 30 seconds
	Timeout time.Duration

	// Interval between refresh cycles.
	// Default: 15 minutes
	Interval time.Duration
}

// DefaultRefreshCities returns the cities refreshed when none are configured.
// Mostly the Randstad plus a few large European cities with dense OpenAQ
// station coverage.
func DefaultRefreshCities() []string {
	return []string{
		"Amsterdam",
		"Rotterdam",
		"Den Haag",
		"Utrecht",
		"Antwerp",
		"Brussels",
		"London",
		"Paris",
		"Berlin",
	}
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Cities:      DefaultRefreshCities(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
		Interval:    15 * time.Minute,
	}
}

// ConfigFromEnv creates a RefreshConfig from environment variables, falling
// back to defaults for anything unset or unparseable.
func ConfigFromEnv() RefreshConfig {
	cfg := DefaultRefreshConfig()

	if raw := os.Getenv("REFRESH_CITIES"); raw != "" {
		var cities []string
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cities = append(cities, c)
			}
		}
		if len(cities) > 0 {
			cfg.Cities = cities
		}
	}
	if raw := os.Getenv("REFRESH_CONCURRENCY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	if raw := os.Getenv("REFRESH_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if raw := os.Getenv("REFRESH_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Interval = d
		}
	}

	return cfg
}
