package openaq

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/weatherwes/weatherwes/internal/airdata"
)

// ErrCircuitOpen is returned when the circuit breaker has tripped and calls
// are being short-circuited.
var ErrCircuitOpen = errors.New("openaq circuit breaker is open")

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// resilientTransport wraps an http.Client with exponential-backoff retries
// and a circuit breaker. Network errors and 5xx responses are retried and
// count against the breaker; 4xx responses are handed back to the caller
// untouched.
type resilientTransport struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]

	// maxRetries counts retries after the initial attempt, so a request is
	// tried at most maxRetries+1 times.
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

func newResilientTransport(timeout time.Duration) *resilientTransport {
	settings := gobreaker.Settings{
		Name:        "openaq",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &resilientTransport{
		client:          &http.Client{Timeout: timeout},
		breaker:         gobreaker.NewCircuitBreaker[*http.Response](settings),
		maxRetries:      3,
		initialInterval: 200 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
}

// Do executes the request, retrying transient failures with exponential
// backoff. A 5xx response that survives all retries is returned as a
// *airdata.StatusError.
func (t *resilientTransport) Do(req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.initialInterval
	bo.MaxInterval = t.maxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, t.maxRetries), req.Context())

	operation := func() (*http.Response, error) {
		resp, err := t.breaker.Execute(func() (*http.Response, error) {
			r, err := t.client.Do(req.Clone(req.Context()))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				r.Body.Close()
				return nil, &airdata.StatusError{Code: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(ErrCircuitOpen)
			}
			return nil, err
		}
		return resp, nil
	}

	return backoff.RetryWithData(operation, policy)
}

var _ HTTPDoer = (*resilientTransport)(nil)
