package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"crowdradar/internal/domain/entities"
)

const cooldownPrefix = "cooldown:"

var errVersionMismatch = errors.New("cooldown version changed")

// CooldownRepository implements repository.CooldownRepository. The version
// field is checked under WATCH, so a concurrent writer either aborts our EXEC
// or is seen as a version mismatch.
type CooldownRepository struct {
	client *redis.Client
}

func NewCooldownRepository(client *redis.Client) *CooldownRepository {
	return &CooldownRepository{client: client}
}

func cooldownKey(userID string) string {
	return cooldownPrefix + userID
}

func (r *CooldownRepository) Get(ctx context.Context, userID string) (*entities.NotificationCooldownState, error) {
	fields, err := r.client.HGetAll(ctx, cooldownKey(userID)).Result()
	if err != nil {
		log.Printf("[CooldownStore] Get FAILED: user=%s err=%v", userID, err)
		return nil, fmt.Errorf("get cooldown: %w", err)
	}
	state := &entities.NotificationCooldownState{UserID: userID}
	if len(fields) == 0 {
		return state, nil
	}
	if state.Version, err = parseVersion(fields["version"]); err != nil {
		return nil, fmt.Errorf("cooldown version: %w", err)
	}
	if state.LastCrowdAlertAt, err = parseTime(fields["lastCrowdAt"]); err != nil {
		return nil, fmt.Errorf("lastCrowdAt: %w", err)
	}
	if state.LastAnyAlertAt, err = parseTime(fields["lastAnyAt"]); err != nil {
		return nil, fmt.Errorf("lastAnyAt: %w", err)
	}
	state.LastFingerprint = fields["lastFingerprint"]
	return state, nil
}

func (r *CooldownRepository) CompareAndSwap(ctx context.Context, next *entities.NotificationCooldownState) (bool, error) {
	key := cooldownKey(next.UserID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, "version").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		current, err := parseVersion(raw)
		if err != nil {
			return err
		}
		if current != next.Version {
			return errVersionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{
				"lastCrowdAt":     formatTime(next.LastCrowdAlertAt),
				"lastAnyAt":       formatTime(next.LastAnyAlertAt),
				"lastFingerprint": next.LastFingerprint,
				"version":         strconv.FormatInt(current+1, 10),
			})
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		log.Printf("[CooldownStore] CompareAndSwap FAILED: user=%s err=%v", next.UserID, err)
		return false, fmt.Errorf("swap cooldown: %w", err)
	}
}

func parseVersion(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
