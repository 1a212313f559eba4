package memory

import (
	"context"
	"testing"
	"time"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/repository/repotest"
)

func TestPresenceRepository(t *testing.T) {
	repotest.PresenceContract(t, NewPresenceRepository())
}

func TestUserRepository(t *testing.T) {
	repotest.UserContract(t, NewUserRepository())
}

func TestDeviceRepository(t *testing.T) {
	repotest.DeviceContract(t, NewDeviceRepository())
}

func TestCooldownRepository(t *testing.T) {
	repotest.CooldownContract(t, NewCooldownRepository())
}

func TestPresenceRepository_ReturnsCopies(t *testing.T) {
	repo := NewPresenceRepository()
	ctx := context.Background()
	now := time.Now()

	rec := entities.NewPresenceRecord("alice", 1, 2, 5, entities.SourceForeground, "s01mtw02sw", now, time.Minute)
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	rec.Lat = 99

	got, _ := repo.Get(ctx, "alice")
	if got.Lat != 1 {
		t.Errorf("stored Lat = %v, want 1", got.Lat)
	}
	got.Lat = 42
	again, _ := repo.Get(ctx, "alice")
	if again.Lat != 1 {
		t.Errorf("stored Lat after caller mutation = %v, want 1", again.Lat)
	}
}

func TestPresenceRepository_EvictExpired(t *testing.T) {
	repo := NewPresenceRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := entities.NewPresenceRecord("old", 1, 2, 5, entities.SourceForeground, "s01mtw02sw", now.Add(-3*time.Hour), 10*time.Minute)
	recent := entities.NewPresenceRecord("recent", 1, 2, 5, entities.SourceForeground, "s01mtw02sw", now.Add(-30*time.Minute), 10*time.Minute)
	_ = repo.Upsert(ctx, old)
	_ = repo.Upsert(ctx, recent)

	if n := repo.EvictExpired(now, time.Hour); n != 1 {
		t.Fatalf("EvictExpired() = %d, want 1", n)
	}
	if got, _ := repo.Get(ctx, "old"); got != nil {
		t.Error("old record still present")
	}
	// Expired but inside retention: still stored, readers filter it.
	if got, _ := repo.Get(ctx, "recent"); got == nil {
		t.Error("recent record evicted too early")
	}
	if repo.Count() != 1 {
		t.Errorf("Count() = %d, want 1", repo.Count())
	}
}

func TestJanitor_StopsCleanly(t *testing.T) {
	repo := NewPresenceRepository()
	_ = repo.Upsert(context.Background(), entities.NewPresenceRecord("old", 1, 2, 5, entities.SourceForeground,
		"s01mtw02sw", time.Now().Add(-48*time.Hour), time.Minute))

	j := NewJanitor(repo, 5*time.Millisecond, time.Hour)
	deadline := time.Now().Add(2 * time.Second)
	for repo.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	j.Stop()

	if repo.Count() != 0 {
		t.Errorf("Count() = %d after sweep, want 0", repo.Count())
	}
}

func TestJanitor_NonPositiveIntervalDisablesSweep(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		repo := NewPresenceRepository()
		_ = repo.Upsert(context.Background(), entities.NewPresenceRecord("old", 1, 2, 5, entities.SourceForeground,
			"s01mtw02sw", time.Now().Add(-48*time.Hour), time.Minute))

		j := NewJanitor(repo, interval, time.Hour)
		j.Stop()

		if repo.Count() != 1 {
			t.Errorf("interval %v: Count() = %d, want the record kept", interval, repo.Count())
		}
	}
}
