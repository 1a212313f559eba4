package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/repository"
)

const userPrefix = "user:"

// Control state is stored one field per value so a patch is a plain HSET of
// the fields it carries.
const (
	fieldProfile          = "profile"
	fieldSharingEnabled   = "sharingEnabled"
	fieldPermissionStatus = "permissionStatus"
	fieldLastLocationAt   = "lastLocationAt"
	fieldLastAccuracy     = "lastAccuracyMeters"
	fieldLastSource       = "lastSource"
	fieldControlUpdatedAt = "controlUpdatedAt"
)

// UserRepository implements repository.UserRepository on user:{uid} hashes.
type UserRepository struct {
	client *redis.Client
}

func NewUserRepository(client *redis.Client) *UserRepository {
	return &UserRepository{client: client}
}

func userKey(userID string) string {
	return userPrefix + userID
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*entities.User, error) {
	fields, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		log.Printf("[UserStore] Get FAILED: user=%s err=%v", userID, err)
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeUser(userID, fields)
}

// GetMany pipelines one HGETALL per id.
func (r *UserRepository) GetMany(ctx context.Context, ids []string) (map[string]*entities.User, error) {
	if len(ids) > repository.BatchGetLimit {
		return nil, fmt.Errorf("%w: %d ids", repository.ErrBatchTooLarge, len(ids))
	}
	out := make(map[string]*entities.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, userKey(id))
		}
		return nil
	})
	if err != nil {
		log.Printf("[UserStore] GetMany FAILED: ids=%d err=%v", len(ids), err)
		return nil, fmt.Errorf("get users: %w", err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		user, err := decodeUser(ids[i], fields)
		if err != nil {
			log.Printf("[UserStore] skipping malformed user: user=%s err=%v", ids[i], err)
			continue
		}
		out[ids[i]] = user
	}
	return out, nil
}

func (r *UserRepository) Put(ctx context.Context, user *entities.User) error {
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	key := userKey(user.ID)

	c := user.Control
	patch := entities.ControlPatch{
		SharingEnabled:     &c.SharingEnabled,
		PermissionStatus:   &c.PermissionStatus,
		LastLocationAt:     c.LastLocationAt,
		LastAccuracyMeters: c.LastAccuracyMeters,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.LastSource != "" {
		patch.LastSource = &c.LastSource
	}
	values := encodeControlPatch(patch)
	values[fieldProfile] = string(profile)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		return nil
	})
	if err != nil {
		log.Printf("[UserStore] Put FAILED: user=%s err=%v", user.ID, err)
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// UpdateControl is a single HSET, which is both the merge and the create.
func (r *UserRepository) UpdateControl(ctx context.Context, userID string, patch entities.ControlPatch) error {
	values := encodeControlPatch(patch)
	if len(values) == 0 {
		return nil
	}
	if err := r.client.HSet(ctx, userKey(userID), values).Err(); err != nil {
		log.Printf("[UserStore] UpdateControl FAILED: user=%s err=%v", userID, err)
		return fmt.Errorf("update control: %w", err)
	}
	return nil
}

func encodeControlPatch(p entities.ControlPatch) map[string]interface{} {
	values := make(map[string]interface{})
	if p.SharingEnabled != nil {
		values[fieldSharingEnabled] = strconv.FormatBool(*p.SharingEnabled)
	}
	if p.PermissionStatus != nil {
		values[fieldPermissionStatus] = string(*p.PermissionStatus)
	}
	if p.LastLocationAt != nil {
		values[fieldLastLocationAt] = formatTime(*p.LastLocationAt)
	}
	if p.LastAccuracyMeters != nil {
		values[fieldLastAccuracy] = formatFloat(*p.LastAccuracyMeters)
	}
	if p.LastSource != nil {
		values[fieldLastSource] = string(*p.LastSource)
	}
	if !p.UpdatedAt.IsZero() {
		values[fieldControlUpdatedAt] = formatTime(p.UpdatedAt)
	}
	return values
}

// decodeUser rebuilds a user. Missing control fields fall back to the
// defaults, so a hash holding only a profile reads as sharing enabled.
func decodeUser(userID string, f map[string]string) (*entities.User, error) {
	user := entities.NewUser(userID, entities.Profile{})
	if raw := f[fieldProfile]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &user.Profile); err != nil {
			return nil, fmt.Errorf("profile: %w", err)
		}
	}

	c := &user.Control
	if v, ok := f[fieldSharingEnabled]; ok {
		c.SharingEnabled = v != "false"
	}
	if v, ok := f[fieldPermissionStatus]; ok {
		c.PermissionStatus = entities.PermissionStatus(v)
	}
	if v := f[fieldLastLocationAt]; v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, fmt.Errorf("lastLocationAt: %w", err)
		}
		c.LastLocationAt = &t
	}
	if v := f[fieldLastAccuracy]; v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("lastAccuracyMeters: %w", err)
		}
		c.LastAccuracyMeters = &a
	}
	c.LastSource = entities.Source(f[fieldLastSource])
	t, err := parseTime(f[fieldControlUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("controlUpdatedAt: %w", err)
	}
	c.UpdatedAt = t
	return user, nil
}
