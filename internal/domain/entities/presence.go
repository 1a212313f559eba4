// Package entities defines the core domain models for the proximity backend.
// These structs represent the business concepts (presence, location control,
// devices, alert cooldowns, public profiles) and live in the innermost layer
// of the architecture — they have no dependencies on storage, HTTP, or push
// providers.
//
// Go Learning Note — "internal/" directory:
// Packages under internal/ cannot be imported by code outside this module. Go
// enforces this at the compiler level, which keeps the storage and transport
// layers free to change without breaking anyone.
package entities

import "time"

// Source records how a location sample was captured on the device.
//
// Go Learning Note — Typed String Enums:
// Go has no enum keyword. A named string type plus constants gives you
// readable JSON and a single place to validate membership (IsValid).
type Source string

const (
	SourceForeground Source = "foreground"
	SourceBackground Source = "background"
)

// IsValid reports whether s is one of the known sample sources.
func (s Source) IsValid() bool {
	return s == SourceForeground || s == SourceBackground
}

// PresenceRecord is a user's latest shared position. There is at most one per
// user. A record whose ExpiresAt has passed is stale: it stays in storage but
// is treated as absent by every reader.
type PresenceRecord struct {
	UserID         string    `json:"uid"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Geohash        string    `json:"geohash"`
	AccuracyMeters float64   `json:"accuracyMeters"`
	Source         Source    `json:"source"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// NewPresenceRecord builds a record stamped at now that stays fresh for the
// given window. The geohash is computed by the caller (see package geo).
func NewPresenceRecord(userID string, lat, lng, accuracy float64, source Source, geohash string, now time.Time, freshness time.Duration) *PresenceRecord {
	return &PresenceRecord{
		UserID:         userID,
		Lat:            lat,
		Lng:            lng,
		Geohash:        geohash,
		AccuracyMeters: accuracy,
		Source:         source,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(freshness),
	}
}

// IsFresh reports whether the record is still usable at now.
func (p *PresenceRecord) IsFresh(now time.Time) bool {
	if p == nil || p.UpdatedAt.IsZero() {
		return false
	}
	return now.Before(p.ExpiresAt)
}
