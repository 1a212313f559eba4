package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"crowdradar/internal/domain/entities"
)

const devicesPrefix = "devices:"

// deviceDoc is the stored form of a registration. Unlike the entity it keeps
// the push token.
type deviceDoc struct {
	PushToken string            `json:"pushToken"`
	Platform  entities.Platform `json:"platform"`
	Enabled   bool              `json:"enabled"`
	UpdatedAt int64             `json:"updatedAt"`
}

// DeviceRepository implements repository.DeviceRepository with one hash per
// user, field per device.
type DeviceRepository struct {
	client *redis.Client
}

func NewDeviceRepository(client *redis.Client) *DeviceRepository {
	return &DeviceRepository{client: client}
}

func devicesKey(userID string) string {
	return devicesPrefix + userID
}

func (r *DeviceRepository) Upsert(ctx context.Context, device *entities.DeviceRegistration) error {
	doc, err := json.Marshal(deviceDoc{
		PushToken: device.PushToken,
		Platform:  device.Platform,
		Enabled:   device.Enabled,
		UpdatedAt: device.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode device: %w", err)
	}
	if err := r.client.HSet(ctx, devicesKey(device.UserID), device.DeviceID, string(doc)).Err(); err != nil {
		log.Printf("[DeviceStore] Upsert FAILED: user=%s device=%s err=%v", device.UserID, device.DeviceID, err)
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) ListEnabled(ctx context.Context, userID string) ([]*entities.DeviceRegistration, error) {
	fields, err := r.client.HGetAll(ctx, devicesKey(userID)).Result()
	if err != nil {
		log.Printf("[DeviceStore] ListEnabled FAILED: user=%s err=%v", userID, err)
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var out []*entities.DeviceRegistration
	for deviceID, raw := range fields {
		var doc deviceDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			log.Printf("[DeviceStore] skipping malformed device: user=%s device=%s err=%v", userID, deviceID, err)
			continue
		}
		if !doc.Enabled {
			continue
		}
		out = append(out, &entities.DeviceRegistration{
			UserID:    userID,
			DeviceID:  deviceID,
			PushToken: doc.PushToken,
			Platform:  doc.Platform,
			Enabled:   doc.Enabled,
			UpdatedAt: time.UnixMilli(doc.UpdatedAt).UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}
