package entities

import "time"

// PermissionStatus is the OS-level location permission last reported by the
// client. It is informational only and never used as a security boundary.
type PermissionStatus string

const (
	PermissionAlways     PermissionStatus = "always"
	PermissionWhileInUse PermissionStatus = "while_in_use"
	PermissionDenied     PermissionStatus = "denied"
	PermissionUnknown    PermissionStatus = "unknown"
)

// IsValid reports whether p is one of the four accepted values.
func (p PermissionStatus) IsValid() bool {
	switch p {
	case PermissionAlways, PermissionWhileInUse, PermissionDenied, PermissionUnknown:
		return true
	}
	return false
}

// NormalizePermissionStatus maps anything unrecognized to PermissionUnknown.
func NormalizePermissionStatus(p PermissionStatus) PermissionStatus {
	if p.IsValid() {
		return p
	}
	return PermissionUnknown
}

// LocationControlState is the per-user sharing switch plus denormalized copies
// of the last accepted ping. If SharingEnabled is false the user must not have
// a PresenceRecord.
type LocationControlState struct {
	SharingEnabled     bool             `json:"sharingEnabled"`
	PermissionStatus   PermissionStatus `json:"permissionStatus"`
	LastLocationAt     *time.Time       `json:"lastLocationAt"`
	LastAccuracyMeters *float64         `json:"lastAccuracyMeters"`
	LastSource         Source           `json:"lastSource,omitempty"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// DefaultLocationControl is what a user without any stored state sees:
// sharing on, permission unknown, no last location.
func DefaultLocationControl() LocationControlState {
	return LocationControlState{
		SharingEnabled:   true,
		PermissionStatus: PermissionUnknown,
	}
}

// ControlPatch is a merge update for LocationControlState. Nil fields are left
// untouched, mirroring a document-store merge write.
type ControlPatch struct {
	SharingEnabled     *bool
	PermissionStatus   *PermissionStatus
	LastLocationAt     *time.Time
	LastAccuracyMeters *float64
	LastSource         *Source
	UpdatedAt          time.Time
}

// Apply merges the patch into s.
func (p ControlPatch) Apply(s *LocationControlState) {
	if p.SharingEnabled != nil {
		s.SharingEnabled = *p.SharingEnabled
	}
	if p.PermissionStatus != nil {
		s.PermissionStatus = *p.PermissionStatus
	}
	if p.LastLocationAt != nil {
		t := *p.LastLocationAt
		s.LastLocationAt = &t
	}
	if p.LastAccuracyMeters != nil {
		a := *p.LastAccuracyMeters
		s.LastAccuracyMeters = &a
	}
	if p.LastSource != nil {
		s.LastSource = *p.LastSource
	}
	if !p.UpdatedAt.IsZero() {
		s.UpdatedAt = p.UpdatedAt
	}
}

// Profile holds the public fields other users may see in nearby results.
// Contact details and coordinates deliberately do not live here.
type Profile struct {
	DisplayName     string `json:"displayName"`
	FieldOfStudy    string `json:"fieldOfStudy"`
	Hobbies         string `json:"hobbies"`
	PhotoRef        string `json:"photoRef"`
	IceBreakerOne   string `json:"iceBreakerOne"`
	IceBreakerTwo   string `json:"iceBreakerTwo"`
	IceBreakerThree string `json:"iceBreakerThree"`
}

// User is the user document: public profile plus location control state.
type User struct {
	ID      string               `json:"id"`
	Profile Profile              `json:"profile"`
	Control LocationControlState `json:"locationControl"`
}

// NewUser creates a user document with default location control.
func NewUser(id string, profile Profile) *User {
	return &User{
		ID:      id,
		Profile: profile,
		Control: DefaultLocationControl(),
	}
}
