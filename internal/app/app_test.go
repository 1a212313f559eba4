package app

import (
	"context"
	"testing"

	"crowdradar/internal/config"
	"crowdradar/internal/push"
)

func TestOpenStores_Memory(t *testing.T) {
	cfg := config.NewDefaultConfig()

	stores, err := OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStores() error = %v", err)
	}
	if stores.Presence == nil || stores.Users == nil || stores.Devices == nil || stores.Cooldowns == nil {
		t.Errorf("incomplete stores: %+v", stores)
	}
	if err := stores.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOpenStores_MemoryWithoutSweep(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Presence.SweepInterval = 0

	stores, err := OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStores() error = %v", err)
	}
	if err := stores.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOpenStores_Unknown(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Store.Backend = "cassandra"

	if _, err := OpenStores(context.Background(), cfg); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestNewPushSender(t *testing.T) {
	cfg := config.NewDefaultConfig()

	sender, err := NewPushSender(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewPushSender(expo) error = %v", err)
	}
	if _, ok := sender.(*push.ExpoClient); !ok {
		t.Errorf("expo provider built %T", sender)
	}

	cfg.Push.Provider = config.PushLog
	sender, err = NewPushSender(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewPushSender(log) error = %v", err)
	}
	if _, ok := sender.(*push.LogSender); !ok {
		t.Errorf("log provider built %T", sender)
	}
}

func TestNewVerifier(t *testing.T) {
	cfg := config.NewDefaultConfig()

	if _, err := NewVerifier(context.Background(), cfg); err == nil {
		t.Error("expected an error without a JWT secret")
	}

	cfg.Auth.JWTSecret = "secret"
	if _, err := NewVerifier(context.Background(), cfg); err != nil {
		t.Errorf("NewVerifier() error = %v", err)
	}
}
