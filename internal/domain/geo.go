package domain

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

const (
	// DefaultNearbyRadiusMeters bounds discovery queries around a caller.
	DefaultNearbyRadiusMeters = 5000.0
	// DefaultMaxNearbyRadiusMeters is the largest discovery radius a caller may ask for.
	DefaultMaxNearbyRadiusMeters = 50000.0
	// DefaultEligibilityRadiusMeters bounds voting and resolution confirmation.
	DefaultEligibilityRadiusMeters = 1000.0
)

// Point is a WGS-84 coordinate in GeoJSON order.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Valid reports whether the point is a finite coordinate on the globe.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lng) || math.IsNaN(p.Lat) || math.IsInf(p.Lng, 0) || math.IsInf(p.Lat, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// BoundingBox is an axis-aligned lng/lat rectangle, edges inclusive.
type BoundingBox struct {
	MinLng float64
	MaxLng float64
	MinLat float64
	MaxLat float64
}

// DefaultRegion is the operating territory used when none is configured.
var DefaultRegion = BoundingBox{MinLng: 80.0, MaxLng: 88.2, MinLat: 26.3, MaxLat: 30.4}

// Contains reports whether p lies inside the box.
func (b BoundingBox) Contains(p Point) bool {
	if !p.Valid() {
		return false
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// GeoGate answers the two geographic eligibility questions the lifecycle asks.
// It never fails loudly: invalid input simply yields false.
type GeoGate struct {
	Region            BoundingBox
	NearbyRadius      float64
	MaxNearbyRadius   float64
	EligibilityRadius float64
}

// DefaultGeoGate returns a gate over DefaultRegion with the default radii.
func DefaultGeoGate() GeoGate {
	return GeoGate{
		Region:            DefaultRegion,
		NearbyRadius:      DefaultNearbyRadiusMeters,
		MaxNearbyRadius:   DefaultMaxNearbyRadiusMeters,
		EligibilityRadius: DefaultEligibilityRadiusMeters,
	}
}

// ValidateRegion reports whether p is inside the operating territory.
func (g GeoGate) ValidateRegion(p Point) bool {
	return g.Region.Contains(p)
}

// ValidateProximity reports whether a and b are at most maxMeters apart.
func (g GeoGate) ValidateProximity(a, b Point, maxMeters float64) bool {
	if !a.Valid() || !b.Valid() || maxMeters < 0 || math.IsNaN(maxMeters) {
		return false
	}
	return Distance(a, b) <= maxMeters
}

// Eligible applies ValidateProximity with the configured eligibility radius.
func (g GeoGate) Eligible(reportAt, callerAt Point) bool {
	return g.ValidateProximity(reportAt, callerAt, g.EligibilityRadius)
}

// SearchRadius resolves a requested discovery radius. Zero selects
// NearbyRadius; anything negative, non-finite or above MaxNearbyRadius is
// rejected.
func (g GeoGate) SearchRadius(requested float64) (float64, error) {
	switch {
	case math.IsNaN(requested) || math.IsInf(requested, 0) || requested < 0:
		return 0, ErrInvalidRadius
	case requested == 0:
		return g.NearbyRadius, nil
	case requested > max(g.MaxNearbyRadius, g.NearbyRadius):
		return 0, ErrRadiusTooLarge
	}
	return requested, nil
}
