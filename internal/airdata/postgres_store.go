package airdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL air data store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const locationColumns = `
	id, name, city, locality,
	country_id, country_code, country_name,
	latitude, longitude, last_updated, parameters,
	last_fetched, measurement_count, has_recent, is_active, is_demo_data
`

// UpsertLocation inserts or replaces a location by its upstream ID.
func (s *PostgresStore) UpsertLocation(ctx context.Context, loc *Location) error {
	query := `
		INSERT INTO locations (
			id, name, city, locality,
			country_id, country_code, country_name,
			latitude, longitude, last_updated, parameters,
			last_fetched, measurement_count, has_recent, is_active, is_demo_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			city = EXCLUDED.city,
			locality = EXCLUDED.locality,
			country_id = EXCLUDED.country_id,
			country_code = EXCLUDED.country_code,
			country_name = EXCLUDED.country_name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			last_updated = EXCLUDED.last_updated,
			parameters = EXCLUDED.parameters,
			last_fetched = EXCLUDED.last_fetched,
			has_recent = EXCLUDED.has_recent,
			is_active = EXCLUDED.is_active
	`

	var lat, lon *float64
	if loc.Coordinates != nil {
		lat = &loc.Coordinates.Latitude
		lon = &loc.Coordinates.Longitude
	}

	_, err := s.pool.Exec(ctx, query,
		loc.ID,
		loc.Name,
		loc.City,
		loc.Locality,
		loc.Country.ID,
		loc.Country.Code,
		loc.Country.Name,
		lat,
		lon,
		loc.LastUpdated,
		loc.Parameters,
		loc.LastFetched,
		loc.MeasurementCount,
		loc.HasRecent,
		loc.IsActive,
		loc.IsDemoData,
	)
	return err
}

// GetLocation retrieves a location by upstream ID.
func (s *PostgresStore) GetLocation(ctx context.Context, id int) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	return s.scanLocation(ctx, query, id)
}

// FindLocationsByCity retrieves locations whose city or locality equals the
// given name, case-insensitively.
func (s *PostgresStore) FindLocationsByCity(ctx context.Context, city string) ([]Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE LOWER(city) = LOWER($1) OR LOWER(locality) = LOWER($1)
		ORDER BY last_fetched DESC, id
	`
	return s.scanLocations(ctx, query, city)
}

// ResolveLocation retrieves a location by name substring or stringified ID.
func (s *PostgresStore) ResolveLocation(ctx context.Context, ident string) (*Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE name ILIKE '%' || $1 || '%' OR id::text = $1
		ORDER BY last_fetched DESC
		LIMIT 1
	`
	return s.scanLocation(ctx, query, ident)
}

// SearchLocations retrieves a page of locations matching the filter.
func (s *PostgresStore) SearchLocations(ctx context.Context, filter LocationFilter) ([]Location, error) {
	var conditions []string
	var args []interface{}

	if filter.City != "" {
		args = append(args, filter.City)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(city ILIKE '%%' || $%d || '%%' OR locality ILIKE '%%' || $%d || '%%')", n, n))
	}
	if filter.Country != "" {
		args = append(args, filter.Country)
		conditions = append(conditions, fmt.Sprintf("UPPER(country_code) = UPPER($%d)", len(args)))
	}
	if filter.ExcludeUnknown {
		conditions = append(conditions, "name IS NOT NULL AND name <> '' AND LOWER(name) <> 'unknown'")
	}

	query := `SELECT ` + locationColumns + ` FROM locations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY last_fetched DESC, id"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, (page-1)*limit)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	return s.scanLocations(ctx, query, args...)
}

// ListLocations retrieves a page of all cached locations plus the total count.
func (s *PostgresStore) ListLocations(ctx context.Context, page, size int) ([]Location, int, error) {
	if size <= 0 {
		size = 100
	}
	if page <= 0 {
		page = 1
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM locations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + locationColumns + `
		FROM locations
		ORDER BY last_fetched DESC, id
		LIMIT $1 OFFSET $2
	`
	locs, err := s.scanLocations(ctx, query, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	return locs, total, nil
}

// SuggestCities returns up to ten distinct city names matching the query,
// preferring cities and topping up with localities when city hits are scarce.
func (s *PostgresStore) SuggestCities(ctx context.Context, q string) ([]string, error) {
	cities, err := s.distinctNames(ctx, "city", q)
	if err != nil {
		return nil, err
	}

	if len(cities) < 5 {
		localities, err := s.distinctNames(ctx, "locality", q)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(cities))
		for _, c := range cities {
			seen[c] = struct{}{}
		}
		// Appended after the sorted city hits, never interleaved.
		for _, l := range localities {
			if _, dup := seen[l]; !dup {
				cities = append(cities, l)
			}
		}
	}

	if len(cities) > 10 {
		cities = cities[:10]
	}
	return cities, nil
}

func (s *PostgresStore) distinctNames(ctx context.Context, column, q string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM locations
		WHERE %s ILIKE '%%' || $1 || '%%'
		  AND %s <> '' AND LOWER(%s) <> 'unknown'
		ORDER BY %s
		LIMIT 10
	`, column, column, column, column, column)

	rows, err := s.pool.Query(ctx, query, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SetLocationStats updates a location's measurement count and demo flag.
func (s *PostgresStore) SetLocationStats(ctx context.Context, id, measurementCount int, isDemo bool) error {
	query := `UPDATE locations SET measurement_count = $2, is_demo_data = $3 WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id, measurementCount, isDemo)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// UpsertMeasurement inserts or replaces a measurement; the last write wins
// for a given (location key, parameter, measured at) triple.
func (s *PostgresStore) UpsertMeasurement(ctx context.Context, m *Measurement) error {
	query := `
		INSERT INTO measurements (
			location_name, location_key, parameter, value, unit, measured_at,
			latitude, longitude, country_code, city, last_fetched, is_demo
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (location_key, parameter, measured_at) DO UPDATE SET
			location_name = EXCLUDED.location_name,
			value = EXCLUDED.value,
			unit = EXCLUDED.unit,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			country_code = EXCLUDED.country_code,
			city = EXCLUDED.city,
			last_fetched = EXCLUDED.last_fetched,
			is_demo = EXCLUDED.is_demo
	`

	var lat, lon *float64
	if m.Coordinates != nil {
		lat = &m.Coordinates.Latitude
		lon = &m.Coordinates.Longitude
	}

	_, err := s.pool.Exec(ctx, query,
		m.LocationName,
		m.LocationKey,
		m.Parameter,
		m.Value,
		m.Unit,
		m.MeasuredAt,
		lat,
		lon,
		m.CountryCode,
		m.City,
		m.LastFetched,
		m.IsDemo,
	)
	return err
}

const measurementColumns = `
	location_name, location_key, parameter, value, unit, measured_at,
	latitude, longitude, country_code, city, last_fetched, is_demo
`

// FindMeasurements retrieves cached measurements for a location key, newest
// first, capped at 100 records.
func (s *PostgresStore) FindMeasurements(ctx context.Context, locationKey string) ([]Measurement, error) {
	query := `
		SELECT ` + measurementColumns + `
		FROM measurements
		WHERE location_key = $1
		ORDER BY measured_at DESC
		LIMIT 100
	`
	return s.scanMeasurements(ctx, query, locationKey)
}

// FindStoredMeasurements retrieves cached measurements by location name with
// optional parameter and time-window filters, newest first, capped at 100.
func (s *PostgresStore) FindStoredMeasurements(ctx context.Context, locationName, parameter string, start, end *time.Time) ([]Measurement, error) {
	conditions := []string{"LOWER(location_name) = LOWER($1)"}
	args := []interface{}{locationName}

	if parameter != "" {
		args = append(args, parameter)
		conditions = append(conditions, fmt.Sprintf("LOWER(parameter) = LOWER($%d)", len(args)))
	}
	if start != nil {
		args = append(args, *start)
		conditions = append(conditions, fmt.Sprintf("measured_at >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conditions = append(conditions, fmt.Sprintf("measured_at <= $%d", len(args)))
	}

	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY measured_at DESC LIMIT 100`

	return s.scanMeasurements(ctx, query, args...)
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) scanLocation(ctx context.Context, query string, args ...interface{}) (*Location, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrLocationNotFound
	}
	return scanLocationRow(rows)
}

func (s *PostgresStore) scanLocations(ctx context.Context, query string, args ...interface{}) ([]Location, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		loc, err := scanLocationRow(rows)
		if err != nil {
			return nil, err
		}
		locs = append(locs, *loc)
	}
	return locs, rows.Err()
}

func scanLocationRow(row pgx.Row) (*Location, error) {
	var loc Location
	var lat, lon *float64

	err := row.Scan(
		&loc.ID,
		&loc.Name,
		&loc.City,
		&loc.Locality,
		&loc.Country.ID,
		&loc.Country.Code,
		&loc.Country.Name,
		&lat,
		&lon,
		&loc.LastUpdated,
		&loc.Parameters,
		&loc.LastFetched,
		&loc.MeasurementCount,
		&loc.HasRecent,
		&loc.IsActive,
		&loc.IsDemoData,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}

	if lat != nil && lon != nil {
		loc.Coordinates = &Coordinates{Latitude: *lat, Longitude: *lon}
	}
	return &loc, nil
}

func (s *PostgresStore) scanMeasurements(ctx context.Context, query string, args ...interface{}) ([]Measurement, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ms []Measurement
	for rows.Next() {
		var m Measurement
		var lat, lon *float64

		err := rows.Scan(
			&m.LocationName,
			&m.LocationKey,
			&m.Parameter,
			&m.Value,
			&m.Unit,
			&m.MeasuredAt,
			&lat,
			&lon,
			&m.CountryCode,
			&m.City,
			&m.LastFetched,
			&m.IsDemo,
		)
		if err != nil {
			return nil, err
		}

		if lat != nil && lon != nil {
			m.Coordinates = &Coordinates{Latitude: *lat, Longitude: *lon}
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

// Ensure PostgresStore implements Store interface.
var _ Store = (*PostgresStore)(nil)
