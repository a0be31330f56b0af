package airdata

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherwes/weatherwes/pkg/geo"
)

// ServiceConfig holds configuration for the air data service.
type ServiceConfig struct {
	// Store is the cache store backing both collections.
	Store Store

	// Upstream is the live data provider.
	Upstream Upstream

	// Logger for service operations.
	Logger zerolog.Logger

	// LocationTTL is how long cached locations stay fresh (default: 1 hour).
	LocationTTL time.Duration

	// MeasurementTTL is how long cached measurements stay fresh (default: 30 minutes).
	MeasurementTTL time.Duration
}

// Service serves air quality data cache-first, reaching upstream only when
// the cache is stale, and degrading through stale data and synthetic demo
// data before reporting failure.
type Service struct {
	store          Store
	upstream       Upstream
	logger         zerolog.Logger
	locationTTL    time.Duration
	measurementTTL time.Duration
}

// NewService creates a new air data service.
func NewService(cfg ServiceConfig) *Service {
	locationTTL := cfg.LocationTTL
	if locationTTL == 0 {
		locationTTL = time.Hour
	}

	measurementTTL := cfg.MeasurementTTL
	if measurementTTL == 0 {
		measurementTTL = 30 * time.Minute
	}

	return &Service{
		store:          cfg.Store,
		upstream:       cfg.Upstream,
		logger:         cfg.Logger,
		locationTTL:    locationTTL,
		measurementTTL: measurementTTL,
	}
}

// FetchLocations returns the monitoring locations for a city, cache-first.
// A cached set where any record is fresh is returned whole. Otherwise the
// upstream is consulted, its results validated and cached; on upstream
// failure any stale cache is served instead.
func (s *Service) FetchLocations(ctx context.Context, city string, forceRefresh bool) ([]Location, error) {
	cached, err := s.store.FindLocationsByCity(ctx, city)
	if err != nil {
		s.logger.Error().Err(err).Str("city", city).Msg("location cache lookup failed")
		cached = nil
	}

	if !forceRefresh && len(cached) > 0 && s.anyLocationFresh(cached) {
		return cached, nil
	}

	fetched, err := s.upstream.FetchLocationsByCity(ctx, city)
	if err != nil {
		if len(cached) > 0 {
			s.logger.Warn().Err(err).Str("city", city).
				Msg("serving stale locations due to upstream error")
			return cached, nil
		}
		if IsClientError(err) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("city", city).Msg("upstream locations fetch failed")
		return nil, ErrUpstreamUnavailable
	}

	valid := s.validateLocations(fetched, city)
	if len(valid) == 0 {
		if len(cached) > 0 {
			return cached, nil
		}
		return nil, ErrNoLocations
	}

	now := time.Now()
	for i := range valid {
		s.enrichLocation(ctx, &valid[i], now)
		valid[i].LastFetched = now
		if err := s.store.UpsertLocation(ctx, &valid[i]); err != nil {
			s.logger.Error().Err(err).Int("location_id", valid[i].ID).
				Msg("failed to cache location")
		}
	}

	s.logger.Info().Str("city", city).Int("locations", len(valid)).
		Msg("locations refreshed from upstream")
	return valid, nil
}

// validateLocations drops upstream records missing the fields the cache
// requires, logging each skip.
func (s *Service) validateLocations(locs []Location, city string) []Location {
	valid := make([]Location, 0, len(locs))
	for _, loc := range locs {
		switch {
		case loc.ID <= 0:
			s.logger.Debug().Str("name", loc.Name).Msg("skipping location without id")
		case loc.Name == "":
			s.logger.Debug().Int("location_id", loc.ID).Msg("skipping location without name")
		case loc.Country.Code == "" && loc.Country.Name == "":
			s.logger.Debug().Int("location_id", loc.ID).Msg("skipping location without country")
		case loc.Coordinates == nil:
			s.logger.Debug().Int("location_id", loc.ID).Msg("skipping location without coordinates")
		default:
			if loc.CityOrLocality() == "" {
				c := city
				loc.City = &c
			}
			valid = append(valid, loc)
		}
	}
	return valid
}

// enrichLocation derives the parameter list and 24-hour recency flag from
// the location's latest readings. Failures are tolerated; the location is
// cached without enrichment.
func (s *Service) enrichLocation(ctx context.Context, loc *Location, now time.Time) {
	latest, err := s.upstream.FetchLatest(ctx, loc.ID)
	if err != nil {
		s.logger.Debug().Err(err).Int("location_id", loc.ID).
			Msg("latest readings unavailable for location")
		return
	}

	seen := make(map[string]struct{}, len(loc.Parameters))
	for _, p := range loc.Parameters {
		seen[p] = struct{}{}
	}
	for _, m := range latest {
		if m.Parameter != "" {
			if _, ok := seen[m.Parameter]; !ok {
				seen[m.Parameter] = struct{}{}
				loc.Parameters = append(loc.Parameters, m.Parameter)
			}
		}
		if now.Sub(m.MeasuredAt) <= 24*time.Hour {
			loc.HasRecent = true
		}
	}
}

// FetchMeasurements returns measurements for a location identified by a
// numeric upstream ID, a cached name fragment, or a raw location key. The
// cache is consulted first; on upstream failure stale data is served; a
// station that exists upstream but reports nothing gets synthetic demo data
// so the response is never empty for a live station.
func (s *Service) FetchMeasurements(ctx context.Context, ident string, forceRefresh bool) (*LocationDetail, error) {
	loc := s.resolveLocation(ctx, ident)

	var cached []Measurement
	if loc != nil {
		var err error
		cached, err = s.store.FindMeasurements(ctx, locationKey(loc))
		if err != nil {
			s.logger.Error().Err(err).Str("ident", ident).Msg("measurement cache lookup failed")
			cached = nil
		}
		if !forceRefresh && len(cached) > 0 && s.anyMeasurementFresh(cached) {
			return s.detail(loc, cached), nil
		}
	}

	id, err := s.upstreamID(ctx, ident, loc)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) && len(cached) > 0 {
			return s.detail(loc, cached), nil
		}
		return nil, err
	}
	if loc == nil || loc.ID != id {
		// The name resolved to a different upstream station; rebind for
		// this call only.
		if fresh := s.resolveByID(ctx, id); fresh != nil {
			loc = fresh
		}
	}

	exists, err := s.upstream.LocationExists(ctx, id)
	if err != nil {
		return s.fallback(ctx, loc, cached, err)
	}
	if !exists {
		// Stations are sometimes re-registered upstream under a new ID.
		// Retry by exact name before giving up; the rebound ID applies to
		// this call only, the cache entry keeps its original ID.
		if rebound := s.rebindByName(ctx, loc, id); rebound != nil {
			loc = rebound
			id = rebound.ID
		} else {
			if len(cached) > 0 {
				s.logger.Warn().Int("location_id", id).
					Msg("station gone upstream, serving cached measurements")
				return s.detail(loc, cached), nil
			}
			return nil, ErrStationGone
		}
	}

	fetched, err := s.upstream.FetchMeasurements(ctx, id)
	if err != nil {
		if IsClientError(err) {
			return nil, err
		}
		return s.fallback(ctx, loc, cached, err)
	}

	now := time.Now()
	if loc == nil {
		loc = s.locationFromMeasurements(ctx, id, fetched, now)
	}

	if len(fetched) == 0 {
		if len(cached) > 0 {
			return s.detail(loc, cached), nil
		}
		return s.serveDemoData(ctx, loc, now)
	}

	for i := range fetched {
		if fetched[i].LocationName == "" {
			fetched[i].LocationName = loc.Name
		}
		fetched[i].LastFetched = now
		if err := s.store.UpsertMeasurement(ctx, &fetched[i]); err != nil {
			s.logger.Error().Err(err).Str("location_key", fetched[i].LocationKey).
				Msg("failed to cache measurement")
		}
	}
	s.setStats(ctx, loc, len(fetched), false)

	stored, err := s.store.FindMeasurements(ctx, locationKey(loc))
	if err != nil || len(stored) == 0 {
		stored = fetched
	}
	return s.detail(loc, stored), nil
}

// resolveLocation finds the cached location an identifier refers to, trying
// a numeric ID first and a name fragment second. A nil result means the
// identifier is unknown to the cache.
func (s *Service) resolveLocation(ctx context.Context, ident string) *Location {
	if id, err := strconv.Atoi(ident); err == nil {
		return s.resolveByID(ctx, id)
	}
	loc, err := s.store.ResolveLocation(ctx, ident)
	if err != nil {
		return nil
	}
	return loc
}

func (s *Service) resolveByID(ctx context.Context, id int) *Location {
	loc, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil
	}
	return loc
}

// upstreamID determines the upstream station ID for an identifier, asking
// the provider by name when the identifier is neither numeric nor cached.
func (s *Service) upstreamID(ctx context.Context, ident string, loc *Location) (int, error) {
	if loc != nil {
		return loc.ID, nil
	}
	if id, err := strconv.Atoi(ident); err == nil {
		return id, nil
	}

	found, err := s.upstream.FindLocationByName(ctx, ident)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return 0, ErrLocationNotFound
		}
		if IsClientError(err) {
			return 0, err
		}
		s.logger.Error().Err(err).Str("ident", ident).Msg("upstream name lookup failed")
		return 0, ErrUpstreamUnavailable
	}
	return found.ID, nil
}

// rebindByName retries resolution by exact station name after an existence
// probe came back negative. Returns the station's current upstream record
// when it is found under a different ID, nil otherwise.
func (s *Service) rebindByName(ctx context.Context, loc *Location, oldID int) *Location {
	if loc == nil || loc.Name == "" {
		return nil
	}
	found, err := s.upstream.FindLocationByName(ctx, loc.Name)
	if err != nil || found == nil || found.ID == oldID {
		return nil
	}
	if !strings.EqualFold(found.Name, loc.Name) {
		return nil
	}
	s.logger.Info().Int("old_id", oldID).Int("location_id", found.ID).
		Str("name", loc.Name).Msg("station re-registered upstream under a new id")
	return found
}

// fallback serves stale cached measurements after an upstream failure, or
// reports the provider unavailable when there is nothing to serve.
func (s *Service) fallback(ctx context.Context, loc *Location, cached []Measurement, cause error) (*LocationDetail, error) {
	if len(cached) > 0 {
		s.logger.Warn().Err(cause).Msg("serving stale measurements due to upstream error")
		return s.detail(loc, cached), nil
	}
	s.logger.Error().Err(cause).Msg("upstream measurements fetch failed with empty cache")
	return nil, ErrUpstreamUnavailable
}

// serveDemoData synthesizes and caches demo measurements for a station that
// exists upstream but reports no data.
func (s *Service) serveDemoData(ctx context.Context, loc *Location, now time.Time) (*LocationDetail, error) {
	demo := GenerateDemoMeasurements(loc.Name, locationKey(loc), loc.Parameters, now)
	if len(demo) == 0 {
		return nil, ErrNoMeasurements
	}

	for i := range demo {
		if err := s.store.UpsertMeasurement(ctx, &demo[i]); err != nil {
			s.logger.Error().Err(err).Str("location_key", demo[i].LocationKey).
				Msg("failed to cache demo measurement")
		}
	}
	s.setStats(ctx, loc, len(demo), true)

	s.logger.Info().Int("location_id", loc.ID).Int("records", len(demo)).
		Msg("serving generated demo measurements")
	return s.detail(loc, demo), nil
}

// locationFromMeasurements caches a minimal location record for a station
// that was queried by ID before its metadata was ever fetched.
func (s *Service) locationFromMeasurements(ctx context.Context, id int, ms []Measurement, now time.Time) *Location {
	loc := &Location{ID: id, Name: strconv.Itoa(id), LastFetched: now, IsActive: true}
	if len(ms) > 0 {
		if ms[0].LocationName != "" {
			loc.Name = ms[0].LocationName
		}
		loc.Coordinates = ms[0].Coordinates
		if ms[0].CountryCode != nil {
			loc.Country.Code = *ms[0].CountryCode
		}
		loc.City = ms[0].City
	}
	if err := s.store.UpsertLocation(ctx, loc); err != nil {
		s.logger.Error().Err(err).Int("location_id", id).Msg("failed to cache location stub")
	}
	return loc
}

func (s *Service) setStats(ctx context.Context, loc *Location, count int, isDemo bool) {
	if loc == nil {
		return
	}
	if err := s.store.SetLocationStats(ctx, loc.ID, count, isDemo); err != nil {
		s.logger.Debug().Err(err).Int("location_id", loc.ID).Msg("failed to update location stats")
	}
	loc.MeasurementCount = count
	loc.IsDemoData = isDemo
}

func (s *Service) detail(loc *Location, ms []Measurement) *LocationDetail {
	return &LocationDetail{
		Location:     loc,
		Measurements: ms,
		Summaries:    Summarize(ms),
	}
}

// SearchQuery narrows a location search. Geographic and parameter filters
// apply to the already-paged result window, not the whole cache.
type SearchQuery struct {
	City           string
	Country        string
	Latitude       *float64
	Longitude      *float64
	RadiusKM       float64
	MinLat         *float64
	MinLon         *float64
	MaxLat         *float64
	MaxLon         *float64
	Parameters     []string
	ExcludeUnknown bool
	Limit          int
	Page           int
	ForceRefresh   bool
}

// SearchLocations searches the cached locations. When a city is named the
// city cache is refreshed through FetchLocations first, so a cold cache
// still yields results. Geographic and parameter filters are applied to the
// returned page only; a filtered page may be smaller than the limit even
// when later pages hold matches.
func (s *Service) SearchLocations(ctx context.Context, q SearchQuery) ([]Location, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	if q.City != "" {
		if _, err := s.FetchLocations(ctx, q.City, q.ForceRefresh); err != nil &&
			!errors.Is(err, ErrNoLocations) {
			s.logger.Warn().Err(err).Str("city", q.City).
				Msg("city refresh failed, searching cache as-is")
		}
	}

	locs, err := s.store.SearchLocations(ctx, LocationFilter{
		City:           q.City,
		Country:        q.Country,
		ExcludeUnknown: q.ExcludeUnknown,
		Limit:          limit,
		Page:           q.Page,
	})
	if err != nil {
		return nil, err
	}

	filtered := make([]Location, 0, len(locs))
	for _, loc := range locs {
		if q.Latitude != nil && q.Longitude != nil && q.RadiusKM > 0 {
			center := geo.Point{Lat: *q.Latitude, Lon: *q.Longitude}
			if !geo.WithinRadius(loc.Point(), center, q.RadiusKM) {
				continue
			}
		}
		if q.MinLat != nil && q.MinLon != nil && q.MaxLat != nil && q.MaxLon != nil {
			if !geo.WithinBBox(loc.Point(), *q.MinLat, *q.MinLon, *q.MaxLat, *q.MaxLon) {
				continue
			}
		}
		if len(q.Parameters) > 0 && !geo.HasAnyParameter(loc.Parameters, q.Parameters) {
			continue
		}
		filtered = append(filtered, loc)
	}
	return filtered, nil
}

// StoredLocations returns a page of cached locations without touching the
// upstream. Size is clamped to 1..100 and defaults to 10.
func (s *Service) StoredLocations(ctx context.Context, page, size int) (*StoredLocations, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	if size > 100 {
		size = 100
	}

	items, total, err := s.store.ListLocations(ctx, page, size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Location{}
	}
	return &StoredLocations{Total: total, Page: page, Size: size, Items: items}, nil
}

// StoredMeasurements returns cached measurements by location name without
// touching the upstream.
func (s *Service) StoredMeasurements(ctx context.Context, locationName, parameter string, start, end *time.Time) ([]Measurement, error) {
	ms, err := s.store.FindStoredMeasurements(ctx, locationName, parameter, start, end)
	if err != nil {
		return nil, err
	}
	if ms == nil {
		ms = []Measurement{}
	}
	return ms, nil
}

// SuggestCities returns up to ten city names matching the query.
func (s *Service) SuggestCities(ctx context.Context, q string) ([]string, error) {
	cities, err := s.store.SuggestCities(ctx, q)
	if err != nil {
		return nil, err
	}
	if cities == nil {
		cities = []string{}
	}
	return cities, nil
}

// Ping reports whether the cache store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) anyLocationFresh(locs []Location) bool {
	cutoff := time.Now().Add(-s.locationTTL)
	for _, loc := range locs {
		if loc.LastFetched.After(cutoff) {
			return true
		}
	}
	return false
}

func (s *Service) anyMeasurementFresh(ms []Measurement) bool {
	cutoff := time.Now().Add(-s.measurementTTL)
	for _, m := range ms {
		if m.LastFetched.After(cutoff) {
			return true
		}
	}
	return false
}

func locationKey(loc *Location) string {
	return strconv.Itoa(loc.ID)
}
