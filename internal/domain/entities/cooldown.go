package entities

import "time"

// NotificationCooldownState tracks the last alerts sent to a user.
//
// Version is bumped on every successful write and is the compare-and-swap
// token: a writer that read Version n may only commit if the stored version is
// still n. A zero state (Version 0) means nothing was ever recorded.
type NotificationCooldownState struct {
	UserID           string    `json:"uid"`
	LastCrowdAlertAt time.Time `json:"lastCrowdAt"`
	LastAnyAlertAt   time.Time `json:"lastAnyAt"`
	LastFingerprint  string    `json:"lastFingerprint"`
	Version          int64     `json:"version"`
}

// InCooldown reports whether a crowd alert was sent less than window ago.
func (s *NotificationCooldownState) InCooldown(now time.Time, window time.Duration) bool {
	if s.LastCrowdAlertAt.IsZero() {
		return false
	}
	return now.Sub(s.LastCrowdAlertAt) < window
}

// RecentlyFired reports whether fingerprint matches the last alert of any kind
// and that alert is less than window old.
func (s *NotificationCooldownState) RecentlyFired(fingerprint string, now time.Time, window time.Duration) bool {
	if s.LastFingerprint != fingerprint || s.LastAnyAlertAt.IsZero() {
		return false
	}
	return now.Sub(s.LastAnyAlertAt) < window
}
