// Package geo provides geographic filter primitives used when narrowing
// monitoring locations by distance, bounding box, or measured parameters.
package geo

import (
	"errors"
	"math"
	"strings"
)

// EarthRadiusKM is the mean Earth radius used for great-circle distances.
const EarthRadiusKM = 6371.0

// ErrOutOfRange is returned when a coordinate falls outside the valid
// latitude [-90, 90] or longitude [-180, 180] range.
var ErrOutOfRange = errors.New("coordinate out of range")

// Point is a geographic coordinate pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether the point lies within the valid coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance computes the great-circle (haversine) distance between two points
// in kilometers. Both points must be within valid coordinate ranges.
func Distance(a, b Point) (float64, error) {
	if !a.Valid() || !b.Valid() {
		return 0, ErrOutOfRange
	}

	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lon * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lon * math.Pi / 180

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKM * c, nil
}

// WithinRadius reports whether p lies within radiusKM kilometers of center.
// A nil point (location without coordinates) is never within any radius.
func WithinRadius(p *Point, center Point, radiusKM float64) bool {
	if p == nil {
		return false
	}
	d, err := Distance(*p, center)
	if err != nil {
		return false
	}
	return d <= radiusKM
}

// WithinBBox reports whether p lies inside the bounding box, inclusive on
// both axes. A nil point is never inside. Boxes crossing the antimeridian
// are not supported.
func WithinBBox(p *Point, minLat, minLon, maxLat, maxLon float64) bool {
	if p == nil {
		return false
	}
	return p.Lat >= minLat && p.Lat <= maxLat &&
		p.Lon >= minLon && p.Lon <= maxLon
}

// HasAnyParameter reports whether any requested parameter code is present in
// the location's parameter set. Comparison is case-insensitive. Empty sets
// on either side yield false rather than an error.
func HasAnyParameter(have, requested []string) bool {
	if len(have) == 0 || len(requested) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, p := range have {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range requested {
		if _, ok := set[strings.ToLower(p)]; ok {
			return true
		}
	}
	return false
}
