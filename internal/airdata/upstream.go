package airdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Upstream defines the interface for the live air quality data provider.
type Upstream interface {
	// FetchLocationsByCity fetches the locations reporting for a city.
	FetchLocationsByCity(ctx context.Context, city string) ([]Location, error)

	// LocationExists reports whether the provider still knows the location.
	LocationExists(ctx context.Context, id int) (bool, error)

	// FindLocationByName fetches the first location whose name matches.
	// Returns ErrLocationNotFound when nothing matches.
	FindLocationByName(ctx context.Context, name string) (*Location, error)

	// FetchLatest fetches a small sample of the location's most recent
	// readings, used to derive its parameter list and recency.
	FetchLatest(ctx context.Context, id int) ([]Measurement, error)

	// FetchMeasurements fetches the location's measurement history.
	// An empty result with a nil error means the provider answered but has
	// no data for the location.
	FetchMeasurements(ctx context.Context, id int) ([]Measurement, error)
}

// StatusError reports a non-success HTTP status from the upstream API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

// IsClientError reports whether err is an upstream 4xx response. These are
// request problems, not provider outages, and do not trigger cache fallback.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError
}
