package main

import (
	"context"
	"testing"
	"time"

	"crowdradar/internal/geo"
	"crowdradar/internal/repository/memory"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	presence := memory.NewPresenceRepository()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	center := geo.Point{Lat: 43.0721, Lng: -87.8851}

	opts := seedOptions{Center: center, Count: 8, TTL: time.Hour, SpreadFt: 20, Prefix: "fake"}
	ids, err := seed(ctx, users, presence, opts, now)
	if err != nil {
		t.Fatalf("seed() error = %v", err)
	}
	if len(ids) != 8 || ids[0] != "fake_01" || ids[7] != "fake_08" {
		t.Fatalf("ids = %v", ids)
	}

	for i, id := range ids {
		u, _ := users.Get(ctx, id)
		if u == nil || u.Profile.DisplayName == "" || !u.Control.SharingEnabled {
			t.Errorf("user %s = %+v", id, u)
		}

		rec, _ := presence.Get(ctx, id)
		if rec == nil {
			t.Fatalf("no presence for %s", id)
		}
		if !rec.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Errorf("%s ExpiresAt = %v", id, rec.ExpiresAt)
		}
		d := geo.DistanceMeters(center, geo.Point{Lat: rec.Lat, Lng: rec.Lng})
		want := geo.FeetToMeters(20) * (0.6 + float64(i%3)*0.2)
		if d < want-0.01 || d > want+0.01 {
			t.Errorf("%s is %.3fm from center, want %.3fm", id, d, want)
		}
	}
}

func TestSeedPoint_NoSpread(t *testing.T) {
	center := geo.Point{Lat: 1, Lng: 2}
	p := seedPoint(seedOptions{Center: center, Count: 3}, 2)
	if p != center {
		t.Errorf("seedPoint() = %v, want the center", p)
	}
}

func TestSeed_RejectsOutOfRange(t *testing.T) {
	_, err := seed(context.Background(), memory.NewUserRepository(), memory.NewPresenceRepository(),
		seedOptions{Center: geo.Point{Lat: 91}, Count: 1, TTL: time.Minute, Prefix: "x"}, time.Now())
	if err == nil {
		t.Error("expected an error for latitude 91")
	}
}
