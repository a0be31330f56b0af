package airdata

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
// This is intended for testing and local development. Production should use
// PostgresStore.
type MemoryStore struct {
	mu           sync.RWMutex
	locations    map[int]*Location
	measurements map[string]*Measurement
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locations:    make(map[int]*Location),
		measurements: make(map[string]*Measurement),
	}
}

// UpsertLocation inserts or replaces a location by its upstream ID.
func (s *MemoryStore) UpsertLocation(_ context.Context, loc *Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpy := *loc
	s.locations[loc.ID] = &cpy
	return nil
}

// GetLocation retrieves a location by upstream ID.
func (s *MemoryStore) GetLocation(_ context.Context, id int) (*Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}

	cpy := *loc
	return &cpy, nil
}

// FindLocationsByCity retrieves locations whose city or locality equals the
// given name, case-insensitively.
func (s *MemoryStore) FindLocationsByCity(_ context.Context, city string) ([]Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := strings.ToLower(city)
	var out []Location
	for _, loc := range s.locations {
		if strings.ToLower(deref(loc.City)) == want || strings.ToLower(deref(loc.Locality)) == want {
			out = append(out, *loc)
		}
	}
	sortByLastFetched(out)
	return out, nil
}

// ResolveLocation retrieves a location by name substring or stringified ID.
func (s *MemoryStore) ResolveLocation(_ context.Context, ident string) (*Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(ident)
	for _, loc := range s.locations {
		if strings.Contains(strings.ToLower(loc.Name), needle) || strconv.Itoa(loc.ID) == ident {
			cpy := *loc
			return &cpy, nil
		}
	}
	return nil, ErrLocationNotFound
}

// SearchLocations retrieves a page of locations matching the filter.
func (s *MemoryStore) SearchLocations(_ context.Context, filter LocationFilter) ([]Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	city := strings.ToLower(filter.City)
	country := strings.ToUpper(filter.Country)

	var matched []Location
	for _, loc := range s.locations {
		if city != "" &&
			!strings.Contains(strings.ToLower(deref(loc.City)), city) &&
			!strings.Contains(strings.ToLower(deref(loc.Locality)), city) {
			continue
		}
		if country != "" && strings.ToUpper(loc.Country.Code) != country {
			continue
		}
		if filter.ExcludeUnknown && isUnknownName(loc.Name) {
			continue
		}
		matched = append(matched, *loc)
	}
	sortByLastFetched(matched)

	return pageOf(matched, filter.Page, filter.Limit), nil
}

// ListLocations retrieves a page of all cached locations plus the total count.
func (s *MemoryStore) ListLocations(_ context.Context, page, size int) ([]Location, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Location, 0, len(s.locations))
	for _, loc := range s.locations {
		all = append(all, *loc)
	}
	sortByLastFetched(all)

	return pageOf(all, page, size), len(all), nil
}

// SuggestCities returns up to ten distinct city names matching the query,
// preferring cities and topping up with localities when city hits are scarce.
func (s *MemoryStore) SuggestCities(_ context.Context, q string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(q)
	citySet := make(map[string]struct{})
	localitySet := make(map[string]struct{})

	for _, loc := range s.locations {
		if c := deref(loc.City); !isUnknownName(c) && strings.Contains(strings.ToLower(c), needle) {
			citySet[c] = struct{}{}
		}
		if l := deref(loc.Locality); !isUnknownName(l) && strings.Contains(strings.ToLower(l), needle) {
			localitySet[l] = struct{}{}
		}
	}

	// Localities only top the list up; they never displace or interleave
	// with city hits.
	cities := sortedKeys(citySet)
	if len(cities) < 5 {
		for _, l := range sortedKeys(localitySet) {
			if _, dup := citySet[l]; !dup {
				cities = append(cities, l)
			}
		}
	}

	if len(cities) > 10 {
		cities = cities[:10]
	}
	return cities, nil
}

// SetLocationStats updates a location's measurement count and demo flag.
func (s *MemoryStore) SetLocationStats(_ context.Context, id, measurementCount int, isDemo bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[id]
	if !ok {
		return ErrLocationNotFound
	}
	loc.MeasurementCount = measurementCount
	loc.IsDemoData = isDemo
	return nil
}

// UpsertMeasurement inserts or replaces a measurement; the last write wins
// for a given (location key, parameter, measured at) triple.
func (s *MemoryStore) UpsertMeasurement(_ context.Context, m *Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := m.LocationKey + "|" + m.Parameter + "|" + m.MeasuredAt.UTC().Format(time.RFC3339Nano)
	cpy := *m
	s.measurements[key] = &cpy
	return nil
}

// FindMeasurements retrieves cached measurements for a location key, newest
// first, capped at 100 records.
func (s *MemoryStore) FindMeasurements(_ context.Context, locationKey string) ([]Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Measurement
	for _, m := range s.measurements {
		if m.LocationKey == locationKey {
			out = append(out, *m)
		}
	}
	return capNewestFirst(out), nil
}

// FindStoredMeasurements retrieves cached measurements by location name with
// optional parameter and time-window filters, newest first, capped at 100.
func (s *MemoryStore) FindStoredMeasurements(_ context.Context, locationName, parameter string, start, end *time.Time) ([]Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Measurement
	for _, m := range s.measurements {
		if !strings.EqualFold(m.LocationName, locationName) {
			continue
		}
		if parameter != "" && !strings.EqualFold(m.Parameter, parameter) {
			continue
		}
		if start != nil && m.MeasuredAt.Before(*start) {
			continue
		}
		if end != nil && m.MeasuredAt.After(*end) {
			continue
		}
		out = append(out, *m)
	}
	return capNewestFirst(out), nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUnknownName(name string) bool {
	return name == "" || strings.EqualFold(name, "unknown")
}

func sortByLastFetched(locs []Location) {
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].LastFetched.Equal(locs[j].LastFetched) {
			return locs[i].ID < locs[j].ID
		}
		return locs[i].LastFetched.After(locs[j].LastFetched)
	})
}

func pageOf(locs []Location, page, size int) []Location {
	if size <= 0 {
		size = 100
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(locs) {
		return []Location{}
	}
	end := start + size
	if end > len(locs) {
		end = len(locs)
	}
	return locs[start:end]
}

func capNewestFirst(ms []Measurement) []Measurement {
	sort.Slice(ms, func(i, j int) bool { return ms[i].MeasuredAt.After(ms[j].MeasuredAt) })
	if len(ms) > 100 {
		ms = ms[:100]
	}
	return ms
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ensure MemoryStore implements Store interface.
var _ Store = (*MemoryStore)(nil)
