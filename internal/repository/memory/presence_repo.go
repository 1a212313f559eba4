package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
)

// PresenceRepository stores presence records with a secondary geohash index
// for range scans. It maintains two data structures:
//   - records: userID → PresenceRecord (primary lookup by user)
//   - index: ordered (geohash, userID) pairs (spatial lookup)
//
// Both are kept in sync on every write. Records are copied on the way in and
// on the way out so callers can never mutate stored state.
type PresenceRepository struct {
	mu      sync.RWMutex
	records map[string]*entities.PresenceRecord
	index   *geo.KeyIndex
}

func NewPresenceRepository() *PresenceRepository {
	return &PresenceRepository{
		records: make(map[string]*entities.PresenceRecord),
		index:   geo.NewKeyIndex(),
	}
}

// Get returns a user's record, or (nil, nil) if they have never pinged or
// their record was deleted.
func (r *PresenceRepository) Get(ctx context.Context, userID string) (*entities.PresenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[userID]
	if !exists {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

// Upsert overwrites the user's record and moves their index entry. The
// geohash must be a full-length key (geo.ValidKey).
func (r *PresenceRepository) Upsert(ctx context.Context, record *entities.PresenceRecord) error {
	if !geo.ValidKey(record.Geohash) {
		return fmt.Errorf("upsert presence: %w: geohash %q is not a %d-character key",
			entities.ErrInvalidArgument, record.Geohash, geo.DefaultPrecision)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *record
	r.records[record.UserID] = &cp
	r.index.Put(record.UserID, record.Geohash)
	return nil
}

// Delete removes the user from both indices. Deleting a missing record is not
// an error.
func (r *PresenceRepository) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, userID)
	r.index.Remove(userID)
	return nil
}

// QueryByGeohashRanges scans the index once per range and joins the hits back
// to their records.
func (r *PresenceRepository) QueryByGeohashRanges(ctx context.Context, ranges []geo.Range, limitPerRange int) ([]*entities.PresenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []*entities.PresenceRecord
	for _, rg := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, id := range r.index.Range(rg, limitPerRange) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if record, ok := r.records[id]; ok {
				cp := *record
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

// EvictExpired physically removes records that expired more than retention
// before now and returns how many were removed. Readers already ignore stale
// records; this only bounds memory.
func (r *PresenceRepository) EvictExpired(now time.Time, retention time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, record := range r.records {
		if now.Sub(record.ExpiresAt) > retention {
			delete(r.records, id)
			r.index.Remove(id)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of stored records, stale ones included.
func (r *PresenceRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
