package services

import (
	"context"
	"fmt"
	"time"

	"crowdradar/internal/auth"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/repository"
)

// SharingRequest is the setSharing input. SharingEnabled is a pointer so a
// missing value is an error rather than false.
type SharingRequest struct {
	SharingEnabled   *bool                     `json:"sharingEnabled"`
	PermissionStatus entities.PermissionStatus `json:"permissionStatus"`
}

// LocationService owns the user's sharing switch.
type LocationService struct {
	users    repository.UserRepository
	presence repository.PresenceRepository
	now      func() time.Time
}

func NewLocationService(users repository.UserRepository, presence repository.PresenceRepository) *LocationService {
	return &LocationService{
		users:    users,
		presence: presence,
		now:      time.Now,
	}
}

// SetSharing turns location sharing on or off for the caller. Turning it off
// removes the caller's presence record immediately, so they drop out of
// everyone's nearby results. Calling it twice with the same value is safe.
func (s *LocationService) SetSharing(ctx context.Context, caller auth.Caller, req SharingRequest) (*entities.SharingResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req.SharingEnabled == nil {
		return nil, fmt.Errorf("%w: sharingEnabled must be boolean", entities.ErrInvalidArgument)
	}
	if !req.PermissionStatus.IsValid() {
		return nil, fmt.Errorf("%w: permissionStatus is invalid", entities.ErrInvalidArgument)
	}

	enabled := *req.SharingEnabled
	permission := req.PermissionStatus
	patch := entities.ControlPatch{
		SharingEnabled:   &enabled,
		PermissionStatus: &permission,
		UpdatedAt:        s.now().UTC(),
	}
	if err := s.users.UpdateControl(ctx, caller.UserID, patch); err != nil {
		return nil, fmt.Errorf("update sharing: %w", err)
	}

	if !enabled {
		if err := s.presence.Delete(ctx, caller.UserID); err != nil {
			return nil, fmt.Errorf("clear presence: %w", err)
		}
	}

	user, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	result := &entities.SharingResult{SharingEnabled: enabled}
	if user != nil {
		result.LastLocationAt = user.Control.LastLocationAt
	}
	return result, nil
}

// GetControlStatus reports the caller's sharing state. A caller without a
// user document sees the defaults.
func (s *LocationService) GetControlStatus(ctx context.Context, caller auth.Caller) (*entities.ControlStatus, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	control := entities.DefaultLocationControl()
	if user != nil {
		control = user.Control
	}

	return &entities.ControlStatus{
		SharingEnabled:     control.SharingEnabled,
		PermissionStatus:   entities.NormalizePermissionStatus(control.PermissionStatus),
		LastLocationAt:     control.LastLocationAt,
		LastAccuracyMeters: control.LastAccuracyMeters,
	}, nil
}
