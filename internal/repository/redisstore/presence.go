package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
)

const (
	presencePrefix = "presence:"
	presenceGeoKey = "presence:geo"

	// presenceRetention is how long an expired record stays in Redis before
	// the key itself expires. Readers treat it as absent long before that.
	presenceRetention = 24 * time.Hour

	maxUpsertRetries = 5
)

// PresenceRepository implements repository.PresenceRepository with one hash
// per user and a shared lexically ordered sorted set as the geohash index.
type PresenceRepository struct {
	client *redis.Client
}

func NewPresenceRepository(client *redis.Client) *PresenceRepository {
	return &PresenceRepository{client: client}
}

func presenceKey(userID string) string {
	return presencePrefix + userID
}

// geoMember joins geohash and uid. Every stored geohash is exactly
// geo.DefaultPrecision characters (Upsert enforces it), so the separator
// always sits at the same offset and a range over geohash prefixes selects
// whole members. ':' itself sorts between '9' and 'b'.
func geoMember(geohash, userID string) string {
	return geohash + ":" + userID
}

func splitGeoMember(member string) (geohash, userID string, ok bool) {
	i := strings.IndexByte(member, ':')
	if i < 0 {
		return "", "", false
	}
	return member[:i], member[i+1:], true
}

func (r *PresenceRepository) Get(ctx context.Context, userID string) (*entities.PresenceRecord, error) {
	fields, err := r.client.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		log.Printf("[PresenceStore] Get FAILED: user=%s err=%v", userID, err)
		return nil, fmt.Errorf("get presence: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodePresence(userID, fields)
}

// Upsert writes the hash and swaps the index member in one MULTI, watching
// the hash so a concurrent move of the same user cannot leave two members.
func (r *PresenceRepository) Upsert(ctx context.Context, record *entities.PresenceRecord) error {
	if !geo.ValidKey(record.Geohash) {
		return fmt.Errorf("upsert presence: %w: geohash %q is not a %d-character key",
			entities.ErrInvalidArgument, record.Geohash, geo.DefaultPrecision)
	}
	key := presenceKey(record.UserID)

	txf := func(tx *redis.Tx) error {
		oldHash, err := tx.HGet(ctx, key, "geohash").Result()
		if err != nil && err != redis.Nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if oldHash != "" && oldHash != record.Geohash {
				pipe.ZRem(ctx, presenceGeoKey, geoMember(oldHash, record.UserID))
			}
			pipe.HSet(ctx, key, encodePresence(record))
			pipe.ZAdd(ctx, presenceGeoKey, redis.Z{Score: 0, Member: geoMember(record.Geohash, record.UserID)})
			pipe.PExpireAt(ctx, key, record.ExpiresAt.Add(presenceRetention))
			return nil
		})
		return err
	}

	for i := 0; i < maxUpsertRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		log.Printf("[PresenceStore] Upsert FAILED: user=%s err=%v", record.UserID, err)
		return fmt.Errorf("upsert presence: %w", err)
	}
	return fmt.Errorf("upsert presence: %w", redis.TxFailedErr)
}

func (r *PresenceRepository) Delete(ctx context.Context, userID string) error {
	key := presenceKey(userID)

	txf := func(tx *redis.Tx) error {
		oldHash, err := tx.HGet(ctx, key, "geohash").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if oldHash != "" {
				pipe.ZRem(ctx, presenceGeoKey, geoMember(oldHash, userID))
			}
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpsertRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		log.Printf("[PresenceStore] Delete FAILED: user=%s err=%v", userID, err)
		return fmt.Errorf("delete presence: %w", err)
	}
	return fmt.Errorf("delete presence: %w", redis.TxFailedErr)
}

// QueryByGeohashRanges issues one ZRANGEBYLEX per range in a single pipeline,
// then loads the matching hashes in a second pipeline. Index members whose
// hash has already expired are dropped from the index on the way.
func (r *PresenceRepository) QueryByGeohashRanges(ctx context.Context, ranges []geo.Range, limitPerRange int) ([]*entities.PresenceRecord, error) {
	if len(ranges) == 0 {
		return nil, nil
	}
	startTime := time.Now()

	scans := make([]*redis.StringSliceCmd, len(ranges))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, rg := range ranges {
			by := &redis.ZRangeBy{Min: "[" + rg.Start, Max: "[" + rg.End}
			if limitPerRange > 0 {
				by.Count = int64(limitPerRange)
			}
			scans[i] = pipe.ZRangeByLex(ctx, presenceGeoKey, by)
		}
		return nil
	})
	if err != nil {
		log.Printf("[PresenceStore] range scan FAILED: ranges=%d err=%v", len(ranges), err)
		return nil, fmt.Errorf("scan presence index: %w", err)
	}

	seen := make(map[string]struct{})
	var members, ids []string
	for _, scan := range scans {
		for _, member := range scan.Val() {
			_, uid, ok := splitGeoMember(member)
			if !ok {
				continue
			}
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			members = append(members, member)
			ids = append(ids, uid)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	loads := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, uid := range ids {
			loads[i] = pipe.HGetAll(ctx, presenceKey(uid))
		}
		return nil
	})
	if err != nil {
		log.Printf("[PresenceStore] load FAILED: ids=%d err=%v", len(ids), err)
		return nil, fmt.Errorf("load presence: %w", err)
	}

	var dangling []interface{}
	out := make([]*entities.PresenceRecord, 0, len(ids))
	for i, load := range loads {
		fields := load.Val()
		if len(fields) == 0 {
			dangling = append(dangling, members[i])
			continue
		}
		rec, err := decodePresence(ids[i], fields)
		if err != nil {
			log.Printf("[PresenceStore] skipping malformed record: user=%s err=%v", ids[i], err)
			continue
		}
		out = append(out, rec)
	}
	if len(dangling) > 0 {
		if err := r.client.ZRem(ctx, presenceGeoKey, dangling...).Err(); err != nil {
			log.Printf("[PresenceStore] index cleanup FAILED: members=%d err=%v", len(dangling), err)
		}
	}

	log.Printf("[PresenceStore] QueryByGeohashRanges OK: ranges=%d returned=%d duration=%v",
		len(ranges), len(out), time.Since(startTime))
	return out, nil
}

func encodePresence(p *entities.PresenceRecord) map[string]interface{} {
	return map[string]interface{}{
		"uid":            p.UserID,
		"lat":            formatFloat(p.Lat),
		"lng":            formatFloat(p.Lng),
		"geohash":        p.Geohash,
		"accuracyMeters": formatFloat(p.AccuracyMeters),
		"source":         string(p.Source),
		"updatedAt":      formatTime(p.UpdatedAt),
		"expiresAt":      formatTime(p.ExpiresAt),
	}
}

func decodePresence(userID string, f map[string]string) (*entities.PresenceRecord, error) {
	lat, err := strconv.ParseFloat(f["lat"], 64)
	if err != nil {
		return nil, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(f["lng"], 64)
	if err != nil {
		return nil, fmt.Errorf("lng: %w", err)
	}
	p := &entities.PresenceRecord{
		UserID:  userID,
		Lat:     lat,
		Lng:     lng,
		Geohash: f["geohash"],
		Source:  entities.Source(f["source"]),
	}
	if v := f["accuracyMeters"]; v != "" {
		if p.AccuracyMeters, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("accuracyMeters: %w", err)
		}
	}
	if p.UpdatedAt, err = parseTime(f["updatedAt"]); err != nil {
		return nil, fmt.Errorf("updatedAt: %w", err)
	}
	if p.ExpiresAt, err = parseTime(f["expiresAt"]); err != nil {
		return nil, fmt.Errorf("expiresAt: %w", err)
	}
	return p, nil
}
