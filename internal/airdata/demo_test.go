package airdata_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherwes/weatherwes/internal/airdata"
)

func TestGenerateDemoMeasurements(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	measurements := airdata.GenerateDemoMeasurements("Test Station", "1234", []string{"pm25"}, now)
	require.Len(t, measurements, 24)

	for _, m := range measurements {
		assert.Equal(t, "Test Station", m.LocationName)
		assert.Equal(t, "1234", m.LocationKey)
		assert.Equal(t, "pm25", m.Parameter)
		assert.Equal(t, "µg/m³", m.Unit)
		assert.True(t, m.IsDemo)
		assert.Equal(t, now, m.LastFetched)

		// pm25 range is [5, 40] with a peak-hour factor of at most 1.5.
		assert.GreaterOrEqual(t, m.Value, 5.0)
		assert.LessOrEqual(t, m.Value, 5.0+(40.0-5.0)*1.5)

		// One reading per hour over the trailing 24 hours.
		assert.False(t, m.MeasuredAt.After(now))
		assert.False(t, m.MeasuredAt.Before(now.Add(-24*time.Hour)))
	}
}

func TestGenerateDemoMeasurements_DefaultParameters(t *testing.T) {
	measurements := airdata.GenerateDemoMeasurements("Test", "1", nil, time.Now())
	require.Len(t, measurements, 4*24)

	seen := map[string]bool{}
	for _, m := range measurements {
		seen[m.Parameter] = true
	}
	assert.Equal(t, map[string]bool{"pm25": true, "pm10": true, "no2": true, "o3": true}, seen)
}

func TestGenerateDemoMeasurements_UnknownParameterSkipped(t *testing.T) {
	measurements := airdata.GenerateDemoMeasurements("Test", "1", []string{"bogus", "no2"}, time.Now())
	require.Len(t, measurements, 24)
	assert.Equal(t, "no2", measurements[0].Parameter)
}
