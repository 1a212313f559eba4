// Package repotest holds behavior checks every repository implementation must
// pass. Backend test files call these with a fresh, empty store.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
	"crowdradar/internal/repository"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func presenceAt(uid string, lat, lng float64, updated time.Time) *entities.PresenceRecord {
	return entities.NewPresenceRecord(uid, lat, lng, 5, entities.SourceForeground,
		geo.Encode(lat, lng, geo.DefaultPrecision), updated, 10*time.Minute)
}

// PresenceContract checks Get, Upsert, Delete and range queries.
func PresenceContract(t *testing.T, repo repository.PresenceRepository) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		got, err := repo.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("upsert and get", func(t *testing.T) {
		rec := presenceAt("alice", 37.7749, -122.4194, base)
		require.NoError(t, repo.Upsert(ctx, rec))

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alice", got.UserID)
		assert.InDelta(t, 37.7749, got.Lat, 1e-9)
		assert.InDelta(t, -122.4194, got.Lng, 1e-9)
		assert.Equal(t, rec.Geohash, got.Geohash)
		assert.Equal(t, entities.SourceForeground, got.Source)
		assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
		assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("upsert rejects short geohash", func(t *testing.T) {
		rec := presenceAt("shorty", 37.7749, -122.4194, base)
		rec.Geohash = rec.Geohash[:6]
		err := repo.Upsert(ctx, rec)
		require.Error(t, err)
		assert.ErrorIs(t, err, entities.ErrInvalidArgument)

		got, err := repo.Get(ctx, "shorty")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("upsert moves index entry", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, presenceAt("mover", 37.7749, -122.4194, base)))
		require.NoError(t, repo.Upsert(ctx, presenceAt("mover", 40.7128, -74.0060, base.Add(time.Minute))))

		sf := geo.QueryBounds(geo.Point{Lat: 37.7749, Lng: -122.4194}, 30)
		got, err := repo.QueryByGeohashRanges(ctx, sf, 200)
		require.NoError(t, err)
		for _, r := range got {
			assert.NotEqual(t, "mover", r.UserID, "old position still indexed")
		}

		ny := geo.QueryBounds(geo.Point{Lat: 40.7128, Lng: -74.0060}, 30)
		got, err = repo.QueryByGeohashRanges(ctx, ny, 200)
		require.NoError(t, err)
		assert.Contains(t, userIDs(got), "mover")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, presenceAt("bob", 37.7749, -122.4194, base)))
		require.NoError(t, repo.Delete(ctx, "bob"))
		require.NoError(t, repo.Delete(ctx, "bob"))

		got, err := repo.Get(ctx, "bob")
		require.NoError(t, err)
		assert.Nil(t, got)

		ranges := geo.QueryBounds(geo.Point{Lat: 37.7749, Lng: -122.4194}, 30)
		recs, err := repo.QueryByGeohashRanges(ctx, ranges, 200)
		require.NoError(t, err)
		assert.NotContains(t, userIDs(recs), "bob")
	})

	t.Run("query dedupes overlapping ranges", func(t *testing.T) {
		center := geo.Point{Lat: 51.5074, Lng: -0.1278}
		require.NoError(t, repo.Upsert(ctx, presenceAt("carol", center.Lat, center.Lng, base)))
		ranges := geo.QueryBounds(center, 15)
		// Scan the same ranges twice; carol must still appear once.
		got, err := repo.QueryByGeohashRanges(ctx, append(ranges, ranges...), 200)
		require.NoError(t, err)

		count := 0
		for _, r := range got {
			if r.UserID == "carol" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("query does not filter stale records", func(t *testing.T) {
		center := geo.Point{Lat: -33.8688, Lng: 151.2093}
		require.NoError(t, repo.Upsert(ctx, presenceAt("stale", center.Lat, center.Lng, base.Add(-24*time.Hour))))
		got, err := repo.QueryByGeohashRanges(ctx, geo.QueryBounds(center, 15), 200)
		require.NoError(t, err)
		assert.Contains(t, userIDs(got), "stale")
	})

	t.Run("limit per range", func(t *testing.T) {
		center := geo.Point{Lat: 35.6762, Lng: 139.6503}
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.Upsert(ctx, presenceAt(fmt.Sprintf("tokyo-%d", i), center.Lat, center.Lng, base)))
		}
		r := geo.Range{Start: geo.Encode(center.Lat, center.Lng, 8), End: geo.Encode(center.Lat, center.Lng, 8) + "~"}
		got, err := repo.QueryByGeohashRanges(ctx, []geo.Range{r}, 3)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

// UserContract checks user reads, batch limits and control merges.
func UserContract(t *testing.T, repo repository.UserRepository) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		got, err := repo.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put and get", func(t *testing.T) {
		u := entities.NewUser("alice", entities.Profile{DisplayName: "Alice", FieldOfStudy: "Math", Hobbies: "chess"})
		require.NoError(t, repo.Put(ctx, u))

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Alice", got.Profile.DisplayName)
		assert.Equal(t, "chess", got.Profile.Hobbies)
		assert.True(t, got.Control.SharingEnabled)
		assert.Equal(t, entities.PermissionUnknown, got.Control.PermissionStatus)
		assert.Nil(t, got.Control.LastLocationAt)
	})

	t.Run("get many", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			require.NoError(t, repo.Put(ctx, entities.NewUser(fmt.Sprintf("batch-%d", i), entities.Profile{DisplayName: "B"})))
		}
		got, err := repo.GetMany(ctx, []string{"batch-0", "batch-1", "missing", "batch-3"})
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.Contains(t, got, "batch-0")
		assert.NotContains(t, got, "missing")
	})

	t.Run("get many over limit", func(t *testing.T) {
		ids := make([]string, repository.BatchGetLimit+1)
		for i := range ids {
			ids[i] = fmt.Sprintf("u%d", i)
		}
		_, err := repo.GetMany(ctx, ids)
		assert.ErrorIs(t, err, repository.ErrBatchTooLarge)
	})

	t.Run("update control merges", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, entities.NewUser("dave", entities.Profile{DisplayName: "Dave"})))

		off := false
		perm := entities.PermissionDenied
		require.NoError(t, repo.UpdateControl(ctx, "dave", entities.ControlPatch{
			SharingEnabled:   &off,
			PermissionStatus: &perm,
			UpdatedAt:        base,
		}))

		at := base.Add(time.Minute)
		acc := 12.5
		src := entities.SourceBackground
		require.NoError(t, repo.UpdateControl(ctx, "dave", entities.ControlPatch{
			LastLocationAt:     &at,
			LastAccuracyMeters: &acc,
			LastSource:         &src,
		}))

		got, err := repo.Get(ctx, "dave")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Dave", got.Profile.DisplayName)
		assert.False(t, got.Control.SharingEnabled)
		assert.Equal(t, entities.PermissionDenied, got.Control.PermissionStatus)
		require.NotNil(t, got.Control.LastLocationAt)
		assert.True(t, at.Equal(*got.Control.LastLocationAt))
		require.NotNil(t, got.Control.LastAccuracyMeters)
		assert.InDelta(t, 12.5, *got.Control.LastAccuracyMeters, 1e-9)
		assert.Equal(t, entities.SourceBackground, got.Control.LastSource)
	})

	t.Run("update control creates user", func(t *testing.T) {
		on := true
		require.NoError(t, repo.UpdateControl(ctx, "fresh", entities.ControlPatch{SharingEnabled: &on, UpdatedAt: base}))
		got, err := repo.Get(ctx, "fresh")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Control.SharingEnabled)
	})
}

// DeviceContract checks device upserts and the enabled filter.
func DeviceContract(t *testing.T, repo repository.DeviceRepository) {
	ctx := context.Background()

	t.Run("none registered", func(t *testing.T) {
		got, err := repo.ListEnabled(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("upsert overwrites by device id", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, &entities.DeviceRegistration{
			UserID: "alice", DeviceID: "ios-iphone15-abcd", PushToken: "ExponentPushToken[old]",
			Platform: entities.PlatformIOS, Enabled: true, UpdatedAt: base,
		}))
		require.NoError(t, repo.Upsert(ctx, &entities.DeviceRegistration{
			UserID: "alice", DeviceID: "ios-iphone15-abcd", PushToken: "ExponentPushToken[new]",
			Platform: entities.PlatformIOS, Enabled: true, UpdatedAt: base.Add(time.Hour),
		}))
		require.NoError(t, repo.Upsert(ctx, &entities.DeviceRegistration{
			UserID: "alice", DeviceID: "android-pixel-ef01", PushToken: "ExponentPushToken[off]",
			Platform: entities.PlatformAndroid, Enabled: false, UpdatedAt: base,
		}))

		got, err := repo.ListEnabled(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ios-iphone15-abcd", got[0].DeviceID)
		assert.Equal(t, "ExponentPushToken[new]", got[0].PushToken)
		assert.Equal(t, entities.PlatformIOS, got[0].Platform)
		assert.Equal(t, "alice", got[0].UserID)
	})
}

// CooldownContract checks the compare-and-swap semantics.
func CooldownContract(t *testing.T, repo repository.CooldownRepository) {
	ctx := context.Background()

	t.Run("zero state", func(t *testing.T) {
		got, err := repo.Get(ctx, "nobody")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(0), got.Version)
		assert.True(t, got.LastCrowdAlertAt.IsZero())
		assert.Empty(t, got.LastFingerprint)
	})

	t.Run("swap then stale swap", func(t *testing.T) {
		state, err := repo.Get(ctx, "alice")
		require.NoError(t, err)

		next := *state
		next.LastCrowdAlertAt = base
		next.LastAnyAlertAt = base
		next.LastFingerprint = "crowd:alice:b|c"
		ok, err := repo.CompareAndSwap(ctx, &next)
		require.NoError(t, err)
		assert.True(t, ok)

		// A second writer that read the same version loses.
		ok, err = repo.CompareAndSwap(ctx, &next)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, "crowd:alice:b|c", got.LastFingerprint)
		assert.True(t, base.Equal(got.LastCrowdAlertAt))
	})

	t.Run("concurrent swaps have one winner", func(t *testing.T) {
		state, err := repo.Get(ctx, "racer")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				next := *state
				next.LastFingerprint = fmt.Sprintf("fp-%d", i)
				next.LastCrowdAlertAt = base
				ok, err := repo.CompareAndSwap(ctx, &next)
				if err == nil && ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func userIDs(recs []*entities.PresenceRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.UserID
	}
	return ids
}
