package geo

import "math"

const (
	// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
	EarthRadiusMeters = 6371000.0

	metersPerFoot = 0.3048
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// DistanceMeters returns the great-circle (haversine) distance between a and
// b. It is symmetric and zero for identical points, and it is the only
// authority for "inside the radius" decisions; geohash prefixes are just a
// pre-filter.
func DistanceMeters(a, b Point) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// FeetToMeters converts feet to meters.
func FeetToMeters(feet float64) float64 {
	return feet * metersPerFoot
}

// MetersToFeet converts meters to feet.
func MetersToFeet(meters float64) float64 {
	return meters / metersPerFoot
}

// RoundFeet converts a distance in meters to whole feet, never below zero.
func RoundFeet(meters float64) int {
	return int(math.Max(0, math.Round(MetersToFeet(meters))))
}

// Offset returns the point reached by travelling distanceMeters from p along
// the given bearing (degrees clockwise from north).
func Offset(p Point, distanceMeters, bearingDeg float64) Point {
	delta := distanceMeters / EarthRadiusMeters
	theta := bearingDeg * math.Pi / 180
	lat1 := p.Lat * math.Pi / 180
	lon1 := p.Lng * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	return Point{Lat: lat2 * 180 / math.Pi, Lng: wrapLongitude(lon2 * 180 / math.Pi)}
}
