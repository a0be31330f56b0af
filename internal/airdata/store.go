package airdata

import (
	"context"
	"time"
)

// LocationFilter narrows a cached-location search. Zero values mean
// "no constraint". City matches both city and locality by substring,
// case-insensitively; Country matches the ISO country code exactly.
type LocationFilter struct {
	City           string
	Country        string
	ExcludeUnknown bool
	Limit          int
	Page           int
}

// Store persists the two cached collections: monitoring locations keyed by
// upstream ID and measurements keyed by (location key, parameter, measured
// at). Upserts are idempotent; replaying the same record is a no-op apart
// from refreshed fetch timestamps.
type Store interface {
	// UpsertLocation inserts or replaces a location by its upstream ID.
	UpsertLocation(ctx context.Context, loc *Location) error

	// GetLocation retrieves a location by upstream ID.
	// Returns ErrLocationNotFound when absent.
	GetLocation(ctx context.Context, id int) (*Location, error)

	// FindLocationsByCity retrieves locations whose city or locality equals
	// the given name, case-insensitively.
	FindLocationsByCity(ctx context.Context, city string) ([]Location, error)

	// ResolveLocation retrieves a location whose name contains ident
	// (case-insensitive), or whose stringified ID equals it.
	// Returns ErrLocationNotFound when nothing matches.
	ResolveLocation(ctx context.Context, ident string) (*Location, error)

	// SearchLocations retrieves a page of locations matching the filter,
	// newest fetched first.
	SearchLocations(ctx context.Context, filter LocationFilter) ([]Location, error)

	// ListLocations retrieves a page of all cached locations plus the total
	// count, newest fetched first.
	ListLocations(ctx context.Context, page, size int) ([]Location, int, error)

	// SuggestCities returns up to ten distinct city names matching the
	// prefix-or-substring query, preferring cities over localities.
	SuggestCities(ctx context.Context, q string) ([]string, error)

	// SetLocationStats updates a location's measurement count and demo flag
	// after a measurement fetch.
	SetLocationStats(ctx context.Context, id int, measurementCount int, isDemo bool) error

	// UpsertMeasurement inserts or replaces a measurement. The last write
	// wins for a given (location key, parameter, measured at) triple.
	UpsertMeasurement(ctx context.Context, m *Measurement) error

	// FindMeasurements retrieves cached measurements for a location key,
	// newest first, capped at 100 records.
	FindMeasurements(ctx context.Context, locationKey string) ([]Measurement, error)

	// FindStoredMeasurements retrieves cached measurements by location name
	// with optional parameter and time-window filters, newest first, capped
	// at 100 records.
	FindStoredMeasurements(ctx context.Context, locationName, parameter string, start, end *time.Time) ([]Measurement, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
