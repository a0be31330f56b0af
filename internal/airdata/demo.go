package airdata

import (
	"math"
	"math/rand"
	"time"
)

// demoRange bounds the synthetic values generated for one parameter.
type demoRange struct {
	min  float64
	max  float64
	unit string
}

// demoRanges holds realistic value ranges per pollutant, in the units OpenAQ
// reports them in.
var demoRanges = map[string]demoRange{
	"pm25": {5, 40, "µg/m³"},
	"pm10": {10, 60, "µg/m³"},
	"no2":  {10, 80, "µg/m³"},
	"o3":   {20, 120, "µg/m³"},
	"co":   {0.2, 3, "mg/m³"},
	"so2":  {3, 25, "µg/m³"},
}

// defaultDemoParameters are generated when the caller does not name any.
var defaultDemoParameters = []string{"pm25", "pm10", "no2", "o3"}

// GenerateDemoMeasurements synthesizes plausible hourly measurements for a
// location that has no retrievable data. It produces one reading per hour
// over the trailing 24 hours for each known parameter, scaled by a
// time-of-day factor so rush hours read higher and nights lower. Every
// record is tagged IsDemo so consumers can tell it apart from real data.
// Unknown parameter codes are skipped.
func GenerateDemoMeasurements(locationName, locationKey string, parameters []string, now time.Time) []Measurement {
	if len(parameters) == 0 {
		parameters = defaultDemoParameters
	}

	var out []Measurement
	for _, param := range parameters {
		r, ok := demoRanges[param]
		if !ok {
			continue
		}
		for h := 0; h < 24; h++ {
			measuredAt := now.Add(-time.Duration(h) * time.Hour)
			factor := hourFactor(measuredAt.Hour())
			value := r.min + (r.max-r.min)*rand.Float64()*factor
			out = append(out, Measurement{
				LocationName: locationName,
				LocationKey:  locationKey,
				Parameter:    param,
				Value:        math.Round(value*10) / 10,
				Unit:         r.unit,
				MeasuredAt:   measuredAt,
				LastFetched:  now,
				IsDemo:       true,
			})
		}
	}
	return out
}

// hourFactor scales demo values by time of day: morning and evening rush
// hours read higher, night hours lower.
func hourFactor(hour int) float64 {
	switch {
	case hour >= 7 && hour <= 10:
		return 1.5
	case hour >= 16 && hour <= 19:
		return 1.4
	case hour <= 5:
		return 0.7
	default:
		return 1.0
	}
}
