// Package openaq provides a client for the OpenAQ API.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/weatherwes/weatherwes/internal/airdata"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ API.
	DefaultBaseURL = "https://api.openaq.org/v3"

	// ProviderName identifies this provider.
	ProviderName = "openaq"
)

// locationParamVariants are the query parameter names tried in order when
// fetching measurements. OpenAQ has shipped several of these over time and
// deployments differ; the first variant yielding a non-empty result wins.
var locationParamVariants = []string{"locations", "location", "id", "entity"}

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as the X-API-Key header when set.
	APIKey string

	// HTTPClient is the HTTP client to use. If nil, a resilient client with
	// retries and a circuit breaker is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// Client is an OpenAQ API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = newResilientTransport(timeout)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// API response types. OpenAQ's schema has drifted between versions, so
// several fields tolerate more than one shape.

type locationsResponse struct {
	Results []locationResult `json:"results"`
}

type measurementsResponse struct {
	Results []measurementResult `json:"results"`
}

type locationResult struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	City        *string          `json:"city"`
	Locality    *string          `json:"locality"`
	Country     countryField     `json:"country"`
	Coordinates *coordinatesData `json:"coordinates"`
	LastUpdated *flexTime        `json:"lastUpdated"`
	Parameters  []parameterField `json:"parameters"`
}

type measurementResult struct {
	Location    string           `json:"location"`
	LocationID  int              `json:"locationId"`
	Parameter   parameterField   `json:"parameter"`
	Value       float64          `json:"value"`
	Unit        string           `json:"unit"`
	Date        flexTime         `json:"date"`
	Coordinates *coordinatesData `json:"coordinates"`
	Country     *string          `json:"country"`
	City        *string          `json:"city"`
}

type coordinatesData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// flexTime accepts either an RFC3339 string or a {"utc": ..., "local": ...}
// object, preferring the UTC member.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse time %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	var obj struct {
		UTC   string `json:"utc"`
		Local string `json:"local"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unrecognized time shape: %w", err)
	}
	raw := obj.UTC
	if raw == "" {
		raw = obj.Local
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// parameterField accepts either a bare string ("pm25") or an object carrying
// the code under "parameter" or "name".
type parameterField struct {
	Name string
}

func (p *parameterField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Name = s
		return nil
	}

	var obj struct {
		Parameter string `json:"parameter"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unrecognized parameter shape: %w", err)
	}
	if obj.Parameter != "" {
		p.Name = obj.Parameter
	} else {
		p.Name = obj.Name
	}
	return nil
}

// countryField accepts either a bare code string ("NL") or an object with
// id, code, and name.
type countryField struct {
	ID   int
	Code string
	Name string
}

func (c *countryField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Code = s
		return nil
	}

	var obj struct {
		ID   int    `json:"id"`
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unrecognized country shape: %w", err)
	}
	c.ID = obj.ID
	c.Code = obj.Code
	c.Name = obj.Name
	return nil
}

// FetchLocationsByCity retrieves the locations reporting for a city, most
// recently updated first.
func (c *Client) FetchLocationsByCity(ctx context.Context, city string) ([]airdata.Location, error) {
	params := url.Values{
		"city":     {city},
		"limit":    {"100"},
		"page":     {"1"},
		"sort":     {"desc"},
		"order_by": {"lastUpdated"},
	}

	var result locationsResponse
	if err := c.get(ctx, "/locations", params, &result); err != nil {
		return nil, err
	}

	locations := make([]airdata.Location, 0, len(result.Results))
	for i := range result.Results {
		locations = append(locations, toLocation(&result.Results[i]))
	}
	return locations, nil
}

// LocationExists probes whether the provider still knows the location.
func (c *Client) LocationExists(ctx context.Context, id int) (bool, error) {
	params := url.Values{
		"id":    {strconv.Itoa(id)},
		"limit": {"1"},
	}

	var result locationsResponse
	if err := c.get(ctx, "/locations", params, &result); err != nil {
		return false, err
	}
	return len(result.Results) > 0, nil
}

// FindLocationByName retrieves the first location whose name matches.
func (c *Client) FindLocationByName(ctx context.Context, name string) (*airdata.Location, error) {
	params := url.Values{
		"name":  {name},
		"limit": {"10"},
	}

	var result locationsResponse
	if err := c.get(ctx, "/locations", params, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, airdata.ErrLocationNotFound
	}

	loc := toLocation(&result.Results[0])
	return &loc, nil
}

// FetchLatest retrieves a small sample of the location's newest readings.
func (c *Client) FetchLatest(ctx context.Context, id int) ([]airdata.Measurement, error) {
	params := url.Values{
		"location_id": {strconv.Itoa(id)},
		"limit":       {"5"},
	}

	var result measurementsResponse
	if err := c.get(ctx, "/latest/measurements", params, &result); err != nil {
		return nil, err
	}
	return toMeasurements(result.Results), nil
}

// FetchMeasurements retrieves the location's measurement history, trying
// each known location query parameter variant until one yields data. A nil
// error with an empty result means every variant answered empty.
func (c *Client) FetchMeasurements(ctx context.Context, id int) ([]airdata.Measurement, error) {
	var firstErr error
	answered := false

	for _, variant := range locationParamVariants {
		params := url.Values{
			variant: {strconv.Itoa(id)},
			"limit": {"100"},
			"page":  {"1"},
		}

		var result measurementsResponse
		if err := c.get(ctx, "/measurements", params, &result); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		answered = true
		if len(result.Results) > 0 {
			return toMeasurements(result.Results), nil
		}
	}

	if !answered {
		return nil, firstErr
	}
	return nil, nil
}

// get performs a GET request against the API and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openaq %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &airdata.StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// toLocation converts an API location to the domain Location.
func toLocation(r *locationResult) airdata.Location {
	loc := airdata.Location{
		ID:       r.ID,
		Name:     r.Name,
		City:     r.City,
		Locality: r.Locality,
		Country: airdata.Country{
			ID:   r.Country.ID,
			Code: r.Country.Code,
			Name: r.Country.Name,
		},
		IsActive: true,
	}

	if r.Coordinates != nil {
		loc.Coordinates = &airdata.Coordinates{
			Latitude:  r.Coordinates.Latitude,
			Longitude: r.Coordinates.Longitude,
		}
	}
	if r.LastUpdated != nil {
		t := r.LastUpdated.Time
		loc.LastUpdated = &t
	}
	for _, p := range r.Parameters {
		if p.Name != "" {
			loc.Parameters = append(loc.Parameters, p.Name)
		}
	}
	return loc
}

// toMeasurements converts API measurements to domain Measurements.
func toMeasurements(results []measurementResult) []airdata.Measurement {
	ms := make([]airdata.Measurement, 0, len(results))
	for _, r := range results {
		key := strconv.Itoa(r.LocationID)
		if r.LocationID == 0 {
			key = r.Location
		}

		m := airdata.Measurement{
			LocationName: r.Location,
			LocationKey:  key,
			Parameter:    r.Parameter.Name,
			Value:        r.Value,
			Unit:         r.Unit,
			MeasuredAt:   r.Date.Time,
			CountryCode:  r.Country,
			City:         r.City,
		}
		if r.Coordinates != nil {
			m.Coordinates = &airdata.Coordinates{
				Latitude:  r.Coordinates.Latitude,
				Longitude: r.Coordinates.Longitude,
			}
		}
		ms = append(ms, m)
	}
	return ms
}

// Ensure Client implements the Upstream interface.
var _ airdata.Upstream = (*Client)(nil)
