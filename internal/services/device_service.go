package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crowdradar/internal/auth"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/repository"
)

// RegisterDeviceRequest is the registerPushToken input.
type RegisterDeviceRequest struct {
	DeviceID  string            `json:"deviceId"`
	Platform  entities.Platform `json:"platform"`
	PushToken string            `json:"pushToken"`
}

// DeviceService records where a user's pushes should go.
type DeviceService struct {
	devices repository.DeviceRepository
	now     func() time.Time
}

func NewDeviceService(devices repository.DeviceRepository) *DeviceService {
	return &DeviceService{
		devices: devices,
		now:     time.Now,
	}
}

// RegisterPushToken stores (or refreshes) one device of the caller and
// enables it.
func (s *DeviceService) RegisterPushToken(ctx context.Context, caller auth.Caller, req RegisterDeviceRequest) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return fmt.Errorf("%w: deviceId is required", entities.ErrInvalidArgument)
	}
	if !req.Platform.IsValid() {
		return fmt.Errorf("%w: platform must be ios or android", entities.ErrInvalidArgument)
	}
	token := strings.TrimSpace(req.PushToken)
	if token == "" {
		return fmt.Errorf("%w: pushToken is required", entities.ErrInvalidArgument)
	}

	err := s.devices.Upsert(ctx, &entities.DeviceRegistration{
		UserID:    caller.UserID,
		DeviceID:  deviceID,
		PushToken: token,
		Platform:  req.Platform,
		Enabled:   true,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save device: %w", err)
	}
	return nil
}
