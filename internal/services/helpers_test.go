package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"crowdradar/internal/auth"
	"crowdradar/internal/config"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
	"crowdradar/internal/push"
	"crowdradar/internal/repository/memory"
)

type sentPush struct {
	tokens []string
	msg    push.Message
}

// recordingSender stands in for the Expo gateway.
type recordingSender struct {
	mu    sync.Mutex
	sends []sentPush
	err   error
}

func (r *recordingSender) Accepts(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken")
}

func (r *recordingSender) Send(ctx context.Context, tokens []string, msg push.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sentPush{tokens: append([]string(nil), tokens...), msg: msg})
	return r.err
}

func (r *recordingSender) sent() []sentPush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentPush(nil), r.sends...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	cfg       *config.Config
	clock     *testClock
	sender    *recordingSender
	users     *memory.UserRepository
	presence  *memory.PresenceRepository
	devices   *memory.DeviceRepository
	cooldowns *memory.CooldownRepository

	location *LocationService
	device   *DeviceService
	nearby   *NearbyService
	alerts   *AlertService
	pings    *PingService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		cfg:       config.NewDefaultConfig(),
		clock:     &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		sender:    &recordingSender{},
		users:     memory.NewUserRepository(),
		presence:  memory.NewPresenceRepository(),
		devices:   memory.NewDeviceRepository(),
		cooldowns: memory.NewCooldownRepository(),
	}

	notifier := NewNotificationService(env.sender, env.cfg.Nearby.DefaultRadiusFt)
	env.location = NewLocationService(env.users, env.presence)
	env.device = NewDeviceService(env.devices)
	env.nearby = NewNearbyService(env.cfg, env.presence, env.users)
	env.alerts = NewAlertService(env.cfg, env.devices, env.cooldowns, notifier)
	env.pings = NewPingService(env.cfg, env.users, env.presence, env.nearby, env.alerts)

	env.location.now = env.clock.Now
	env.device.now = env.clock.Now
	env.nearby.now = env.clock.Now
	env.alerts.now = env.clock.Now
	env.pings.now = env.clock.Now
	return env
}

// addUser creates a user document with a display name equal to the id.
func (e *testEnv) addUser(t *testing.T, id string) auth.Caller {
	t.Helper()
	if err := e.users.Put(context.Background(), entities.NewUser(id, entities.Profile{DisplayName: id})); err != nil {
		t.Fatalf("Put(%s) error = %v", id, err)
	}
	return auth.Caller{UserID: id}
}

func (e *testEnv) addDevice(t *testing.T, caller auth.Caller) {
	t.Helper()
	err := e.device.RegisterPushToken(context.Background(), caller, RegisterDeviceRequest{
		DeviceID:  caller.UserID + "-phone",
		Platform:  entities.PlatformIOS,
		PushToken: "ExponentPushToken[" + caller.UserID + "]",
	})
	if err != nil {
		t.Fatalf("RegisterPushToken(%s) error = %v", caller.UserID, err)
	}
}

// ping submits a ping at p and fails the test unless it is accepted.
func (e *testEnv) ping(t *testing.T, caller auth.Caller, p geo.Point) {
	t.Helper()
	res, err := e.pings.UpsertPing(context.Background(), caller, pingAt(p, e.clock.Now()))
	if err != nil {
		t.Fatalf("UpsertPing(%s) error = %v", caller.UserID, err)
	}
	if !res.Accepted {
		t.Fatalf("UpsertPing(%s) rejected: %s", caller.UserID, res.Reason)
	}
}

func pingAt(p geo.Point, at time.Time) entities.PingInput {
	return entities.PingInput{
		Lat:            f64(p.Lat),
		Lng:            f64(p.Lng),
		AccuracyMeters: f64(5),
		Source:         entities.SourceForeground,
		RecordedAtMs:   f64(float64(at.UnixMilli())),
	}
}

func f64(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
