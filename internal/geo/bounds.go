package geo

import (
	"math"
	"sort"
)

// Geodetic constants (WGS84) used to size the query cover.
const (
	earthEqRadius                = 6378137.0
	earthMeridionalCircumference = 40007860.0
	metersPerDegreeLatitude      = 110574.0
	earthE2                      = 0.00669447819799
	epsilon                      = 1e-12
	maxBits                      = MaxPrecision * bitsPerChar
	defaultQueryBits             = DefaultPrecision * bitsPerChar

	// coverSlack widens the box. DistanceMeters works on a sphere while the
	// box is sized on the ellipsoid, which is up to half a percent narrower
	// in longitude.
	coverSlack = 1.01
)

// Range is an inclusive lexical key range [Start, End] over stored geohashes.
// End may be Start's prefix followed by "~", which sorts after every base32
// character.
type Range struct {
	Start string
	End   string
}

// Contains reports whether key falls inside the range.
func (r Range) Contains(key string) bool {
	return key >= r.Start && key <= r.End
}

// QueryBounds returns the ordered, de-duplicated set of geohash ranges whose
// union covers every point within radiusMeters of center.
//
// The cover is built from nine sample points (the center and the corners and
// edge midpoints of the circle's bounding box). Each sample point is encoded at a bit
// precision coarse enough that one cell spans the whole box, so the cover
// always over-reaches and exact filtering is left to DistanceMeters.
//
// Go Learning Note — Over-covering:
// Geohash cells are rectangles on a lat/lng grid, and cells that touch in
// space can be far apart in lexical order. Querying several ranges and
// filtering afterward is far cheaper than trying to compute a minimal cover.
func QueryBounds(center Point, radiusMeters float64) []Range {
	if radiusMeters < 0 || math.IsNaN(radiusMeters) {
		radiusMeters = 0
	}

	radiusMeters *= coverSlack

	bits := boundingBoxBits(center, radiusMeters)
	if bits < 1 {
		bits = 1
	}
	// Stored keys are DefaultPrecision characters long; a longer range start
	// would sort after the key it is meant to match.
	if bits > defaultQueryBits {
		bits = defaultQueryBits
	}

	seen := make(map[Range]struct{})
	var ranges []Range
	for _, p := range boundingBoxCoordinates(center, radiusMeters) {
		gh := Encode(p.Lat, p.Lng, int(math.Ceil(float64(bits)/bitsPerChar)))
		r := geohashQuery(gh, bits)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		ranges = append(ranges, r)
	}

	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Start == ranges[j].Start {
			return ranges[i].End < ranges[j].End
		}
		return ranges[i].Start < ranges[j].Start
	})
	return ranges
}

// geohashQuery turns a geohash and a bit precision into the range of all
// stored keys whose first bits match.
func geohashQuery(gh string, bits int) Range {
	precision := int(math.Ceil(float64(bits) / bitsPerChar))
	if len(gh) < precision {
		return Range{Start: gh, End: gh + "~"}
	}
	gh = gh[:precision]
	base := gh[:len(gh)-1]
	lastValue := base32Map[gh[len(gh)-1]]
	significantBits := bits - len(base)*bitsPerChar
	unusedBits := bitsPerChar - significantBits

	startValue := (lastValue >> unusedBits) << unusedBits
	endValue := startValue + (1 << unusedBits)

	start := base + string(base32[startValue])
	if endValue > 31 {
		return Range{Start: start, End: base + "~"}
	}
	return Range{Start: start, End: base + string(base32[endValue])}
}

// boundingBoxCoordinates returns the center plus the eight compass points of
// the circle's bounding box, with longitudes wrapped into [-180, 180].
//
// A box that reaches a pole, or is at least half the globe wide, covers every
// longitude. Offsetting the center by longDegs would then wrap back onto the
// center meridian, so sample points spaced around the whole parallel are added.
func boundingBoxCoordinates(center Point, radius float64) []Point {
	latDegrees := radius / metersPerDegreeLatitude
	latNorth := math.Min(90, center.Lat+latDegrees)
	latSouth := math.Max(-90, center.Lat-latDegrees)
	longDegsNorth := metersToLongitudeDegrees(radius, latNorth)
	longDegsSouth := metersToLongitudeDegrees(radius, latSouth)
	longDegs := math.Max(longDegsNorth, longDegsSouth)

	points := []Point{
		{Lat: center.Lat, Lng: center.Lng},
		{Lat: center.Lat, Lng: wrapLongitude(center.Lng - longDegs)},
		{Lat: center.Lat, Lng: wrapLongitude(center.Lng + longDegs)},
		{Lat: latNorth, Lng: center.Lng},
		{Lat: latNorth, Lng: wrapLongitude(center.Lng - longDegs)},
		{Lat: latNorth, Lng: wrapLongitude(center.Lng + longDegs)},
		{Lat: latSouth, Lng: center.Lng},
		{Lat: latSouth, Lng: wrapLongitude(center.Lng - longDegs)},
		{Lat: latSouth, Lng: wrapLongitude(center.Lng + longDegs)},
	}
	if latNorth >= 90 || latSouth <= -90 || longDegs >= 180 {
		for _, lat := range []float64{latNorth, center.Lat, latSouth} {
			for _, lng := range []float64{-180, -90, 0, 90} {
				points = append(points, Point{Lat: lat, Lng: lng})
			}
		}
	}
	return points
}

// boundingBoxBits is the number of geohash bits whose cell is at least as
// large as the circle's bounding box on both axes.
func boundingBoxBits(center Point, size float64) int {
	latDeltaDegrees := size / metersPerDegreeLatitude
	latitudeNorth := math.Min(90, center.Lat+latDeltaDegrees)
	latitudeSouth := math.Max(-90, center.Lat-latDeltaDegrees)
	bitsLat := int(math.Floor(latitudeBitsForResolution(size))) * 2
	bitsLongNorth := int(math.Floor(longitudeBitsForResolution(size, latitudeNorth)))*2 - 1
	bitsLongSouth := int(math.Floor(longitudeBitsForResolution(size, latitudeSouth)))*2 - 1
	return minInt(bitsLat, minInt(bitsLongNorth, minInt(bitsLongSouth, maxBits)))
}

func latitudeBitsForResolution(resolution float64) float64 {
	if resolution <= 0 {
		return maxBits
	}
	return math.Min(math.Log2(earthMeridionalCircumference/2/resolution), maxBits)
}

func longitudeBitsForResolution(resolution, latitude float64) float64 {
	degs := metersToLongitudeDegrees(resolution, latitude)
	if math.Abs(degs) > 0.000001 {
		return math.Max(1, math.Log2(360/degs))
	}
	return 1
}

// metersToLongitudeDegrees converts a distance along a parallel to degrees
// of longitude at the given latitude.
func metersToLongitudeDegrees(distance, latitude float64) float64 {
	radians := latitude * math.Pi / 180
	num := math.Cos(radians) * earthEqRadius * math.Pi / 180
	denom := 1 / math.Sqrt(1-earthE2*math.Sin(radians)*math.Sin(radians))
	deltaDeg := num * denom
	if deltaDeg < epsilon {
		if distance > 0 {
			return 360
		}
		return 0
	}
	return math.Min(360, distance/deltaDeg)
}

// wrapLongitude maps any longitude into [-180, 180].
func wrapLongitude(longitude float64) float64 {
	if longitude <= 180 && longitude >= -180 {
		return longitude
	}
	adjusted := longitude + 180
	if adjusted > 0 {
		return math.Mod(adjusted, 360) - 180
	}
	return 180 - math.Mod(-adjusted, 360)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
