package entities

import "time"

// Platform is the mobile OS a device runs.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// IsValid reports whether p is a supported platform.
func (p Platform) IsValid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// DeviceRegistration is one push-capable device of a user. DeviceID is chosen
// by the client from stable device traits, not the raw push token, so a
// rotated token overwrites the same registration.
type DeviceRegistration struct {
	UserID    string    `json:"-"`
	DeviceID  string    `json:"deviceId"`
	PushToken string    `json:"-"`
	Platform  Platform  `json:"platform"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}
