// Package airdata provides cached air quality data backed by the OpenAQ API.
package airdata

import (
	"errors"
	"time"

	"github.com/weatherwes/weatherwes/pkg/geo"
)

// Domain errors.
var (
	ErrNoLocations         = errors.New("no locations found")
	ErrLocationNotFound    = errors.New("location not found")
	ErrStationGone         = errors.New("station no longer reports data")
	ErrNoMeasurements      = errors.New("no measurements available")
	ErrUpstreamUnavailable = errors.New("air quality provider unavailable")
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point converts the coordinates to a geo.Point.
func (c *Coordinates) Point() *geo.Point {
	if c == nil {
		return nil
	}
	return &geo.Point{Lat: c.Latitude, Lon: c.Longitude}
}

// Country identifies the country a location belongs to.
type Country struct {
	ID   int    `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

// Location is a monitoring location as cached from OpenAQ.
// City and Locality are pointers because upstream frequently omits them.
type Location struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	City             *string      `json:"city,omitempty"`
	Locality         *string      `json:"locality,omitempty"`
	Country          Country      `json:"country"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	LastUpdated      *time.Time   `json:"last_updated,omitempty"`
	Parameters       []string     `json:"parameters,omitempty"`
	LastFetched      time.Time    `json:"last_fetched"`
	MeasurementCount int          `json:"measurement_count"`
	HasRecent        bool         `json:"has_recent"`
	IsActive         bool         `json:"is_active"`
	IsDemoData       bool         `json:"is_demo_data,omitempty"`
}

// Point returns the location's coordinates as a geo.Point, or nil when the
// location has none.
func (l *Location) Point() *geo.Point {
	return l.Coordinates.Point()
}

// CityOrLocality returns the best available settlement name, preferring City.
func (l *Location) CityOrLocality() string {
	if l.City != nil && *l.City != "" {
		return *l.City
	}
	if l.Locality != nil && *l.Locality != "" {
		return *l.Locality
	}
	return ""
}

// Measurement is a single cached pollutant reading. LocationKey is a string
// because some upstream stations carry non-numeric identifiers.
type Measurement struct {
	LocationName string       `json:"location_name"`
	LocationKey  string       `json:"location_key"`
	Parameter    string       `json:"parameter"`
	Value        float64      `json:"value"`
	Unit         string       `json:"unit"`
	MeasuredAt   time.Time    `json:"measured_at"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	CountryCode  *string      `json:"country_code,omitempty"`
	City         *string      `json:"city,omitempty"`
	LastFetched  time.Time    `json:"last_fetched"`
	IsDemo       bool         `json:"is_demo,omitempty"`
}

// Summary aggregates one parameter's measurements. Derived on demand, never
// persisted.
type Summary struct {
	Parameter   string    `json:"parameter"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Avg         float64   `json:"avg"`
	Count       int       `json:"count"`
	Unit        string    `json:"unit"`
	LastUpdated time.Time `json:"last_updated"`
}

// LocationDetail is the measurement endpoint's response envelope.
type LocationDetail struct {
	Location     *Location     `json:"location"`
	Measurements []Measurement `json:"measurements"`
	Summaries    []Summary     `json:"measurements_summary"`
}

// StoredLocations is a page of cached locations.
type StoredLocations struct {
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
	Items []Location `json:"items"`
}
