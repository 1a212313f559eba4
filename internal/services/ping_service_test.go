package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"crowdradar/internal/auth"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
	"crowdradar/internal/repository"
)

func TestValidatePing(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := func() entities.PingInput { return pingAt(geo.Point{Lat: 10, Lng: 20}, now) }

	tests := []struct {
		name   string
		mutate func(*entities.PingInput)
		ok     bool
	}{
		{"valid", func(in *entities.PingInput) {}, true},
		{"background source", func(in *entities.PingInput) { in.Source = entities.SourceBackground }, true},
		{"zero accuracy", func(in *entities.PingInput) { in.AccuracyMeters = f64(0) }, true},
		{"max accuracy", func(in *entities.PingInput) { in.AccuracyMeters = f64(500) }, true},
		{"missing lat", func(in *entities.PingInput) { in.Lat = nil }, false},
		{"NaN lng", func(in *entities.PingInput) { in.Lng = f64(math.NaN()) }, false},
		{"lat out of range", func(in *entities.PingInput) { in.Lat = f64(91) }, false},
		{"lng out of range", func(in *entities.PingInput) { in.Lng = f64(-180.5) }, false},
		{"negative accuracy", func(in *entities.PingInput) { in.AccuracyMeters = f64(-1) }, false},
		{"accuracy too large", func(in *entities.PingInput) { in.AccuracyMeters = f64(500.1) }, false},
		{"infinite accuracy", func(in *entities.PingInput) { in.AccuracyMeters = f64(math.Inf(1)) }, false},
		{"unknown source", func(in *entities.PingInput) { in.Source = "walking" }, false},
		{"missing timestamp", func(in *entities.PingInput) { in.RecordedAtMs = nil }, false},
		{"negative timestamp", func(in *entities.PingInput) { in.RecordedAtMs = f64(-1) }, false},
		{"timestamp past int64", func(in *entities.PingInput) { in.RecordedAtMs = f64(1e19) }, false},
		{"timestamp after year 9999", func(in *entities.PingInput) { in.RecordedAtMs = f64(253402300800000) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			ping, ok := ValidatePing(in)
			if ok != tt.ok {
				t.Fatalf("ValidatePing() ok = %v, want %v", ok, tt.ok)
			}
			if ok && !ping.RecordedAt.Equal(now) {
				t.Errorf("RecordedAt = %v, want %v", ping.RecordedAt, now)
			}
		})
	}
}

func TestPingService_InvalidPingHasNoSideEffects(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.addUser(t, "alice")
	ctx := context.Background()

	in := pingAt(geo.Point{Lat: 95, Lng: 0}, env.clock.Now())
	res, err := env.pings.UpsertPing(ctx, alice, in)
	if err != nil {
		t.Fatalf("UpsertPing() error = %v", err)
	}
	if res.Accepted || res.Reason != entities.RejectInvalid {
		t.Errorf("result = %+v, want invalid reject", res)
	}
	if rec, _ := env.presence.Get(ctx, "alice"); rec != nil {
		t.Error("invalid ping wrote a presence record")
	}
}

func TestPingService_RequiresCaller(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.pings.UpsertPing(context.Background(), auth.Caller{}, pingAt(geo.Point{}, env.clock.Now()))
	if !errors.Is(err, entities.ErrUnauthenticated) {
		t.Errorf("error = %v, want ErrUnauthenticated", err)
	}
}

func TestPingService_MissingProfile(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.pings.UpsertPing(context.Background(), auth.Caller{UserID: "ghost"}, pingAt(geo.Point{}, env.clock.Now()))
	if !errors.Is(err, entities.ErrFailedPrecondition) {
		t.Errorf("error = %v, want ErrFailedPrecondition", err)
	}
}

func TestPingService_PausedWhenSharingDisabled(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.addUser(t, "alice")
	ctx := context.Background()

	_, err := env.location.SetSharing(ctx, alice, SharingRequest{SharingEnabled: boolPtr(false), PermissionStatus: entities.PermissionAlways})
	if err != nil {
		t.Fatalf("SetSharing() error = %v", err)
	}

	res, err := env.pings.UpsertPing(ctx, alice, pingAt(geo.Point{Lat: 1, Lng: 1}, env.clock.Now()))
	if err != nil {
		t.Fatalf("UpsertPing() error = %v", err)
	}
	if res.Accepted || res.Reason != entities.RejectPaused {
		t.Errorf("result = %+v, want paused", res)
	}
	if rec, _ := env.presence.Get(ctx, "alice"); rec != nil {
		t.Error("paused ping wrote a presence record")
	}
}

func TestPingService_CommitUpdatesPresenceAndStatus(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.addUser(t, "alice")
	ctx := context.Background()
	p := geo.Point{Lat: 37.7749, Lng: -122.4194}

	env.ping(t, alice, p)

	rec, err := env.presence.Get(ctx, "alice")
	if err != nil || rec == nil {
		t.Fatalf("Get() = %v, %v", rec, err)
	}
	if rec.Geohash != geo.Encode(p.Lat, p.Lng, geo.DefaultPrecision) {
		t.Errorf("Geohash = %q", rec.Geohash)
	}
	if !rec.ExpiresAt.Equal(env.clock.Now().Add(env.cfg.Presence.FreshnessWindow)) {
		t.Errorf("ExpiresAt = %v", rec.ExpiresAt)
	}

	status, err := env.location.GetControlStatus(ctx, alice)
	if err != nil {
		t.Fatalf("GetControlStatus() error = %v", err)
	}
	if !status.SharingEnabled || status.LastLocationAt == nil || !status.LastLocationAt.Equal(env.clock.Now()) {
		t.Errorf("status = %+v", status)
	}
	if status.LastAccuracyMeters == nil || *status.LastAccuracyMeters != 5 {
		t.Errorf("LastAccuracyMeters = %v, want 5", status.LastAccuracyMeters)
	}
}

func TestPingService_Throttle(t *testing.T) {
	env := setupTestEnv(t)
	env.cfg.Presence.ThrottleWindow = 30 * time.Minute
	env.cfg.Presence.ThrottleDistanceMeters = 3
	alice := env.addUser(t, "alice")
	ctx := context.Background()
	start := geo.Point{Lat: 40.0, Lng: -74.0}

	env.ping(t, alice, start)
	env.clock.Advance(5 * time.Second)

	res, err := env.pings.UpsertPing(ctx, alice, pingAt(geo.Offset(start, 1, 90), env.clock.Now()))
	if err != nil {
		t.Fatalf("UpsertPing() error = %v", err)
	}
	if res.Accepted || res.Reason != entities.RejectThrottled {
		t.Fatalf("result = %+v, want throttled", res)
	}
	wantWait := int((30*time.Minute - 5*time.Second) / time.Second)
	if res.NextPingAfterSec == nil || *res.NextPingAfterSec != wantWait {
		t.Errorf("NextPingAfterSec = %v, want %d", res.NextPingAfterSec, wantWait)
	}

	// Moving past the threshold is accepted even inside the window.
	env.ping(t, alice, geo.Offset(start, 4, 90))

	// Standing still is accepted once the window has passed.
	env.clock.Advance(30 * time.Minute)
	env.ping(t, alice, geo.Offset(start, 4, 90))
}

func TestPingService_ThrottleWaitRoundsUp(t *testing.T) {
	env := setupTestEnv(t)
	now := env.clock.Now()
	prev := entities.NewPresenceRecord("alice", 0, 0, 5, entities.SourceForeground, "s000000000", now.Add(-1500*time.Millisecond), time.Minute)

	wait, throttled := env.pings.throttleWait(prev, entities.Ping{Lat: 0, Lng: 0}, now)
	if !throttled {
		t.Fatal("expected throttle")
	}
	// 20s window, 1.5s elapsed: 18.5s left.
	if wait != 19 {
		t.Errorf("wait = %d, want 19", wait)
	}

	if _, throttled := env.pings.throttleWait(nil, entities.Ping{}, now); throttled {
		t.Error("first ping must never be throttled")
	}
}

// A at the origin and eight others on a 5 m circle around them: every pair
// is within 10 m, well inside the 50 ft alert radius.
func crowdPoints() (geo.Point, []geo.Point) {
	center := geo.Point{Lat: 0, Lng: 0}
	var ring []geo.Point
	for i := 0; i < 8; i++ {
		ring = append(ring, geo.Offset(center, 5, float64(i)*45))
	}
	return center, ring
}

func TestPingService_CrowdOfEightAlertsOnce(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	center, ring := crowdPoints()

	a := env.addUser(t, "A")
	env.addDevice(t, a)
	env.ping(t, a, center)

	for i, p := range ring {
		caller := env.addUser(t, fmt.Sprintf("%c", 'B'+i))
		env.ping(t, caller, p)
		env.clock.Advance(time.Second)
	}

	sent := env.sender.sent()
	if len(sent) != 1 {
		t.Fatalf("got %d pushes, want exactly 1", len(sent))
	}
	if len(sent[0].tokens) != 1 || sent[0].tokens[0] != "ExponentPushToken[A]" {
		t.Errorf("push went to %v, want A's device", sent[0].tokens)
	}
	if sent[0].msg.Body != "There are 8 people within 50 ft of you." {
		t.Errorf("Body = %q", sent[0].msg.Body)
	}
	if sent[0].msg.Data["crowdCount"] != 8 {
		t.Errorf("crowdCount = %v, want 8", sent[0].msg.Data["crowdCount"])
	}

	resp, err := env.nearby.GetNearby(ctx, a, f64(50))
	if err != nil {
		t.Fatalf("GetNearby() error = %v", err)
	}
	if resp.CrowdCount != 8 || len(resp.Users) != 8 {
		t.Fatalf("CrowdCount = %d, users = %d, want 8", resp.CrowdCount, len(resp.Users))
	}
	for i := 1; i < len(resp.Users); i++ {
		if resp.Users[i-1].DistanceFt > resp.Users[i].DistanceFt {
			t.Errorf("users not sorted by distance: %+v", resp.Users)
		}
	}

	// Another round from the same crowd stays inside the cooldown.
	env.clock.Advance(time.Minute)
	env.ping(t, env.addUser(t, "late"), geo.Offset(center, 2, 10))
	if got := len(env.sender.sent()); got != 1 {
		t.Errorf("got %d pushes after a second round, want 1", got)
	}
}

func TestPingService_FanoutSurvivesDeliveryFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.sender.err = errors.New("gateway down")
	center, ring := crowdPoints()

	a := env.addUser(t, "A")
	env.addDevice(t, a)
	env.ping(t, a, center)

	for i, p := range ring {
		caller := env.addUser(t, fmt.Sprintf("%c", 'B'+i))
		// The ping is accepted even though the push that it triggers fails.
		env.ping(t, caller, p)
	}
	if got := len(env.sender.sent()); got != 1 {
		t.Errorf("got %d push attempts, want 1", got)
	}
}

func TestNeighborsOf(t *testing.T) {
	center := geo.Point{Lat: 0, Lng: 0}
	pool := []impactedUser{
		{id: "sender", point: center},
		{id: "near", point: geo.Offset(center, 10, 0)},
		{id: "far", point: geo.Offset(center, 14, 180)},
	}

	got := neighborsOf(pool[1], pool, geo.FeetToMeters(50))
	if len(got) != 1 || got[0] != "sender" {
		t.Errorf("neighbors of near = %v, want [sender]", got)
	}
	got = neighborsOf(pool[0], pool, geo.FeetToMeters(50))
	if len(got) != 2 {
		t.Errorf("neighbors of sender = %v, want 2", got)
	}
}

// interleavedUsers runs hook after the nth Get, standing in for a request
// that lands between two steps of the ping pipeline.
type interleavedUsers struct {
	repository.UserRepository
	calls int
	n     int
	hook  func()
}

func (u *interleavedUsers) Get(ctx context.Context, id string) (*entities.User, error) {
	user, err := u.UserRepository.Get(ctx, id)
	u.calls++
	if u.calls == u.n {
		u.hook()
	}
	return user, err
}

func TestPingService_SharingDisabledMidPing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.addUser(t, "alice")

	// The ping reads alice with sharing on; the disable lands right after.
	env.pings.users = &interleavedUsers{
		UserRepository: env.users,
		n:              1,
		hook: func() {
			_, err := env.location.SetSharing(ctx, alice, SharingRequest{
				SharingEnabled: boolPtr(false), PermissionStatus: entities.PermissionDenied,
			})
			if err != nil {
				t.Errorf("SetSharing() error = %v", err)
			}
		},
	}

	res, err := env.pings.UpsertPing(ctx, alice, pingAt(geo.Point{Lat: 1, Lng: 1}, env.clock.Now()))
	if err != nil {
		t.Fatalf("UpsertPing() error = %v", err)
	}
	if res.Accepted || res.Reason != entities.RejectPaused {
		t.Errorf("result = %+v, want paused", res)
	}
	if rec, _ := env.presence.Get(ctx, "alice"); rec != nil {
		t.Error("presence survived a concurrent disable")
	}
	status, err := env.location.GetControlStatus(ctx, alice)
	if err != nil {
		t.Fatalf("GetControlStatus() error = %v", err)
	}
	if status.SharingEnabled {
		t.Error("ping re-enabled sharing")
	}
}

func TestPingService_DisableAfterCommitLeavesNoPresence(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.addUser(t, "alice")

	// Disable once the ping has written its record and re-read the user.
	env.pings.users = &interleavedUsers{
		UserRepository: env.users,
		n:              2,
		hook: func() {
			if _, err := env.location.SetSharing(ctx, alice, SharingRequest{
				SharingEnabled: boolPtr(false), PermissionStatus: entities.PermissionDenied,
			}); err != nil {
				t.Errorf("SetSharing() error = %v", err)
			}
		},
	}

	if _, err := env.pings.UpsertPing(ctx, alice, pingAt(geo.Point{Lat: 1, Lng: 1}, env.clock.Now())); err != nil {
		t.Fatalf("UpsertPing() error = %v", err)
	}

	status, err := env.location.GetControlStatus(ctx, alice)
	if err != nil {
		t.Fatalf("GetControlStatus() error = %v", err)
	}
	rec, _ := env.presence.Get(ctx, "alice")
	if !status.SharingEnabled && rec != nil {
		t.Error("sharing is off but a presence record remains")
	}
}
