package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"crowdradar/internal/domain/entities"
)

func crowdIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%02d", i)
	}
	return ids
}

func TestFingerprint(t *testing.T) {
	got := Fingerprint("A", []string{"d", "b", "c"}, 10)
	if got != "crowd:A:b|c|d" {
		t.Errorf("Fingerprint() = %q", got)
	}

	if Fingerprint("A", []string{"x", "y"}, 10) != Fingerprint("A", []string{"y", "x"}, 10) {
		t.Error("fingerprint depends on order")
	}

	// Only the first ten sorted ids count.
	ids := crowdIDs(12)
	if Fingerprint("A", ids, 10) != Fingerprint("A", ids[:10], 10) {
		t.Error("ids beyond the sample changed the fingerprint")
	}
	if Fingerprint("A", ids, 10) == Fingerprint("B", ids, 10) {
		t.Error("fingerprint ignores the subject")
	}
}

func TestAlertService_BelowThreshold(t *testing.T) {
	env := setupTestEnv(t)
	env.addDevice(t, env.addUser(t, "A"))

	sent, err := env.alerts.MaybeSendCrowdAlert(context.Background(), "A", crowdIDs(7))
	if err != nil || sent {
		t.Errorf("MaybeSendCrowdAlert() = %v, %v; want false, nil", sent, err)
	}
	if len(env.sender.sent()) != 0 {
		t.Error("push sent below the crowd threshold")
	}
}

func TestAlertService_NoDeliverableDevice(t *testing.T) {
	env := setupTestEnv(t)
	a := env.addUser(t, "A")
	err := env.device.RegisterPushToken(context.Background(), a, RegisterDeviceRequest{
		DeviceID: "web", Platform: entities.PlatformAndroid, PushToken: "not-an-expo-token",
	})
	if err != nil {
		t.Fatalf("RegisterPushToken() error = %v", err)
	}

	sent, err := env.alerts.MaybeSendCrowdAlert(context.Background(), "A", crowdIDs(8))
	if err != nil || sent {
		t.Errorf("MaybeSendCrowdAlert() = %v, %v; want false, nil", sent, err)
	}
	state, _ := env.cooldowns.Get(context.Background(), "A")
	if state.Version != 0 {
		t.Error("cooldown recorded for a user with no deliverable device")
	}
}

func TestAlertService_CooldownSuppressesThenReleases(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.addDevice(t, env.addUser(t, "A"))
	neighbors := crowdIDs(8)

	twoMinutesAgo := env.clock.Now().Add(-2 * time.Minute)
	ok, err := env.cooldowns.CompareAndSwap(ctx, &entities.NotificationCooldownState{
		UserID:           "A",
		LastCrowdAlertAt: twoMinutesAgo,
		LastAnyAlertAt:   twoMinutesAgo,
		LastFingerprint:  Fingerprint("A", neighbors, 10),
	})
	if err != nil || !ok {
		t.Fatalf("seed cooldown: %v, %v", ok, err)
	}

	sent, err := env.alerts.MaybeSendCrowdAlert(ctx, "A", neighbors)
	if err != nil || sent {
		t.Fatalf("inside cooldown: MaybeSendCrowdAlert() = %v, %v", sent, err)
	}
	if len(env.sender.sent()) != 0 {
		t.Fatal("push sent inside the cooldown")
	}

	env.clock.Advance(29 * time.Minute)
	if sent, _ := env.alerts.MaybeSendCrowdAlert(ctx, "A", neighbors); sent {
		t.Fatal("push sent one minute before the cooldown ends")
	}

	env.clock.Advance(time.Minute)
	sent, err = env.alerts.MaybeSendCrowdAlert(ctx, "A", neighbors)
	if err != nil || !sent {
		t.Fatalf("after cooldown: MaybeSendCrowdAlert() = %v, %v", sent, err)
	}
	pushes := env.sender.sent()
	if len(pushes) != 1 || pushes[0].msg.Title != "Crowd nearby" {
		t.Errorf("pushes = %+v", pushes)
	}

	state, _ := env.cooldowns.Get(ctx, "A")
	if !state.LastCrowdAlertAt.Equal(env.clock.Now()) || state.LastFingerprint != Fingerprint("A", neighbors, 10) {
		t.Errorf("cooldown state = %+v", state)
	}
}

func TestAlertService_FingerprintGateIsIndependent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.addDevice(t, env.addUser(t, "A"))
	neighbors := crowdIDs(8)
	now := env.clock.Now()

	// The last crowd alert is old, but the same neighbor set fired recently
	// through another path.
	ok, err := env.cooldowns.CompareAndSwap(ctx, &entities.NotificationCooldownState{
		UserID:           "A",
		LastCrowdAlertAt: now.Add(-time.Hour),
		LastAnyAlertAt:   now.Add(-5 * time.Minute),
		LastFingerprint:  Fingerprint("A", neighbors, 10),
	})
	if err != nil || !ok {
		t.Fatalf("seed cooldown: %v, %v", ok, err)
	}

	if sent, _ := env.alerts.MaybeSendCrowdAlert(ctx, "A", neighbors); sent {
		t.Error("same fingerprint inside the window was not suppressed")
	}

	changed := append(crowdIDs(7), "newcomer")
	sent, err := env.alerts.MaybeSendCrowdAlert(ctx, "A", changed)
	if err != nil || !sent {
		t.Errorf("new crowd composition: MaybeSendCrowdAlert() = %v, %v", sent, err)
	}
}

func TestAlertService_ConcurrentEvaluationsSendOnce(t *testing.T) {
	env := setupTestEnv(t)
	env.addDevice(t, env.addUser(t, "A"))
	neighbors := crowdIDs(9)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.alerts.MaybeSendCrowdAlert(context.Background(), "A", neighbors); err != nil {
				t.Errorf("MaybeSendCrowdAlert() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(env.sender.sent()); got != 1 {
		t.Errorf("got %d pushes from concurrent evaluations, want 1", got)
	}
}

func TestNotificationService_PushTokens(t *testing.T) {
	n := NewNotificationService(&recordingSender{}, 50)
	devices := []*entities.DeviceRegistration{
		{DeviceID: "a", PushToken: "ExponentPushToken[1]", Enabled: true},
		{DeviceID: "b", PushToken: " ExponentPushToken[1] ", Enabled: true},
		{DeviceID: "c", PushToken: "fcm-token", Enabled: true},
		{DeviceID: "d", PushToken: "ExponentPushToken[2]", Enabled: false},
		{DeviceID: "e", PushToken: "ExponentPushToken[3]", Enabled: true},
		nil,
	}

	got := n.PushTokens(devices)
	if len(got) != 2 || got[0] != "ExponentPushToken[1]" || got[1] != "ExponentPushToken[3]" {
		t.Errorf("PushTokens() = %v", got)
	}
}
