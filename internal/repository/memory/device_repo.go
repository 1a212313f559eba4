package memory

import (
	"context"
	"sort"
	"sync"

	"crowdradar/internal/domain/entities"
)

type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]map[string]*entities.DeviceRegistration // userID → deviceID → registration
}

func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{
		devices: make(map[string]map[string]*entities.DeviceRegistration),
	}
}

func (r *DeviceRepository) Upsert(ctx context.Context, device *entities.DeviceRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[device.UserID]; !exists {
		r.devices[device.UserID] = make(map[string]*entities.DeviceRegistration)
	}
	cp := *device
	r.devices[device.UserID][device.DeviceID] = &cp
	return nil
}

// ListEnabled returns the user's enabled devices ordered by device id.
func (r *DeviceRepository) ListEnabled(ctx context.Context, userID string) ([]*entities.DeviceRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.DeviceRegistration
	for _, d := range r.devices[userID] {
		if d.Enabled {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}
