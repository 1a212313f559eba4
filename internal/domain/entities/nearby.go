package entities

import "time"

// NearbyUser is the public projection returned by nearby queries. It never
// carries coordinates or contact details.
type NearbyUser struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	FieldOfStudy    string `json:"fieldOfStudy"`
	Hobbies         string `json:"hobbies"`
	PhotoRef        string `json:"photoRef"`
	IceBreakerOne   string `json:"iceBreakerOne"`
	IceBreakerTwo   string `json:"iceBreakerTwo"`
	IceBreakerThree string `json:"iceBreakerThree"`
	DistanceFt      int    `json:"distanceFt"`
}

// NewNearbyUser projects a profile and a rounded distance into a NearbyUser.
func NewNearbyUser(id string, p Profile, distanceFt int) NearbyUser {
	return NearbyUser{
		ID:              id,
		DisplayName:     p.DisplayName,
		FieldOfStudy:    p.FieldOfStudy,
		Hobbies:         p.Hobbies,
		PhotoRef:        p.PhotoRef,
		IceBreakerOne:   p.IceBreakerOne,
		IceBreakerTwo:   p.IceBreakerTwo,
		IceBreakerThree: p.IceBreakerThree,
		DistanceFt:      distanceFt,
	}
}

// NearbyResponse is the getNearby payload.
type NearbyResponse struct {
	Users      []NearbyUser `json:"users"`
	CrowdCount int          `json:"crowdCount"`
	AsOf       time.Time    `json:"asOf"`
}

// EmptyNearbyResponse is returned when the caller cannot be a query center.
func EmptyNearbyResponse(now time.Time) *NearbyResponse {
	return &NearbyResponse{Users: []NearbyUser{}, CrowdCount: 0, AsOf: now.UTC()}
}

// ControlStatus is the getControlStatus payload.
type ControlStatus struct {
	SharingEnabled     bool             `json:"sharingEnabled"`
	PermissionStatus   PermissionStatus `json:"permissionStatus"`
	LastLocationAt     *time.Time       `json:"lastLocationAt"`
	LastAccuracyMeters *float64         `json:"lastAccuracyMeters"`
}

// SharingResult is the setSharing payload.
type SharingResult struct {
	SharingEnabled bool       `json:"sharingEnabled"`
	LastLocationAt *time.Time `json:"lastLocationAt"`
}
