// Package geo implements geohash encoding, range-scan query bounds, great
// circle distance, and an ordered geohash key index for proximity queries on
// presence records.
//
// Go Learning Note — What is a Geohash?
// A geohash is a way to encode a latitude/longitude pair into a short string.
// The key property is that nearby locations share a common prefix. For example,
// two points 10 m apart might both start with "9q8yyk8y", while a point a few
// hundred meters away might only share "9q8yy". Because the strings sort
// lexically, "everything inside this cell" becomes an ordered range scan on
// any store that can sort strings.
//
// Precision determines the cell size:
//
//	1 → ~5000 km    4 → ~39 km     7 → ~153 m    10 → ~1.2 m
//	2 → ~1250 km    5 → ~5 km      8 → ~19 m     11 → ~15 cm
//	3 → ~156 km     6 → ~1.2 km    9 → ~2.4 m    12 → ~1.9 cm
//
// Presence keys are stored at precision 10. A 50 ft search radius resolves
// to 8-character prefixes, so one cover is a handful of short range scans.
package geo

import (
	"strings"
)

const (
	// base32 is the geohash alphabet. 'a', 'i', 'l' and 'o' are excluded.
	base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

	// DefaultPrecision is the length of the geohash stored on every presence
	// record.
	DefaultPrecision = 10

	// MaxPrecision is the longest geohash Encode will produce.
	MaxPrecision = 22

	bitsPerChar = 5
)

var base32Map = map[byte]int{}

func init() {
	for i := 0; i < len(base32); i++ {
		base32Map[base32[i]] = i
	}
}

// Encode converts latitude and longitude to a geohash string with the given
// precision. A precision <= 0 selects DefaultPrecision.
//
// Algorithm overview (binary interleaving):
//  1. Start with the full range: lat [-90, 90], lon [-180, 180]
//  2. Alternate between longitude (even bits) and latitude (odd bits)
//  3. For each step, bisect the range and set bit=1 if value >= midpoint
//  4. Every 5 bits are encoded as one base32 character
func Encode(lat, lon float64, precision int) string {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	minLat, maxLat := -90.0, 90.0
	minLon, maxLon := -180.0, 180.0

	var hash strings.Builder
	hash.Grow(precision)
	isEven := true
	bit := 0
	ch := 0

	for hash.Len() < precision {
		if isEven {
			mid := (minLon + maxLon) / 2
			if lon >= mid {
				ch |= 1 << (4 - bit)
				minLon = mid
			} else {
				maxLon = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		isEven = !isEven
		bit++
		if bit == bitsPerChar {
			hash.WriteByte(base32[ch])
			bit = 0
			ch = 0
		}
	}

	return hash.String()
}

// Box is the latitude/longitude extent of a geohash cell.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the box (edges included).
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// DecodeBounds replays the binary subdivision of hash and returns the cell it
// names. Characters outside the alphabet are skipped.
func DecodeBounds(hash string) Box {
	b := Box{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
	isEven := true

	for i := 0; i < len(hash); i++ {
		cd, ok := base32Map[hash[i]]
		if !ok {
			continue
		}
		for j := bitsPerChar - 1; j >= 0; j-- {
			bit := (cd >> j) & 1
			if isEven {
				mid := (b.MinLon + b.MaxLon) / 2
				if bit == 1 {
					b.MinLon = mid
				} else {
					b.MaxLon = mid
				}
			} else {
				mid := (b.MinLat + b.MaxLat) / 2
				if bit == 1 {
					b.MinLat = mid
				} else {
					b.MaxLat = mid
				}
			}
			isEven = !isEven
		}
	}
	return b
}

// Decode returns the center of the cell named by hash.
//
// Go Learning Note — Named Return Values:
// The signature `(lat, lon float64)` documents which float64 is which and
// allows a bare return. Keep them for short functions like this one.
func Decode(hash string) (lat, lon float64) {
	b := DecodeBounds(hash)
	lat = (b.MinLat + b.MaxLat) / 2
	lon = (b.MinLon + b.MaxLon) / 2
	return
}

// Valid reports whether every character of hash is in the geohash alphabet.
func Valid(hash string) bool {
	if hash == "" {
		return false
	}
	for i := 0; i < len(hash); i++ {
		if _, ok := base32Map[hash[i]]; !ok {
			return false
		}
	}
	return true
}

// ValidKey reports whether hash can be stored in a presence index: exactly
// DefaultPrecision characters from the geohash alphabet. Range scans compare
// keys lexically, which only matches the cell prefix when every key has the
// same length.
func ValidKey(hash string) bool {
	return len(hash) == DefaultPrecision && Valid(hash)
}
