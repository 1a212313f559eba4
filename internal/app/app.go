// Package app builds the configured backends (stores, push gateway, token
// verifier) for the server and the command-line tools.
package app

import (
	"context"
	"fmt"
	"log"

	"crowdradar/internal/auth"
	"crowdradar/internal/config"
	"crowdradar/internal/push"
	"crowdradar/internal/repository"
	"crowdradar/internal/repository/memory"
	"crowdradar/internal/repository/redisstore"
)

// Stores bundles one implementation of every repository.
type Stores struct {
	Presence  repository.PresenceRepository
	Users     repository.UserRepository
	Devices   repository.DeviceRepository
	Cooldowns repository.CooldownRepository

	closers []func() error
}

// Close releases connections and stops background sweeps.
func (s *Stores) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenStores connects the backend named by cfg.Store.Backend. The memory
// backend also starts a janitor that drops long-expired presence records;
// Redis expires them with key TTLs.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		presence := memory.NewPresenceRepository()
		janitor := memory.NewJanitor(presence, cfg.Presence.SweepInterval, cfg.Presence.RetentionAfterExpiry)
		log.Printf("Using in-memory store (presence sweep every %v)", cfg.Presence.SweepInterval)
		return &Stores{
			Presence:  presence,
			Users:     memory.NewUserRepository(),
			Devices:   memory.NewDeviceRepository(),
			Cooldowns: memory.NewCooldownRepository(),
			closers:   []func() error{func() error { janitor.Stop(); return nil }},
		}, nil

	case config.StoreRedis:
		client, err := redisstore.NewClient(cfg.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, err
		}
		log.Printf("Connected to Redis")
		return &Stores{
			Presence:  redisstore.NewPresenceRepository(client.Client),
			Users:     redisstore.NewUserRepository(client.Client),
			Devices:   redisstore.NewDeviceRepository(client.Client),
			Cooldowns: redisstore.NewCooldownRepository(client.Client),
			closers:   []func() error{client.Close},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// NewPushSender returns the gateway named by cfg.Push.Provider.
func NewPushSender(ctx context.Context, cfg *config.Config) (push.Sender, error) {
	switch cfg.Push.Provider {
	case config.PushExpo:
		return push.NewExpoClient(cfg.Push.ExpoURL, cfg.Push.Timeout), nil
	case config.PushFCM:
		return push.NewFCMClient(ctx, cfg.Push.FirebaseCredentials)
	case config.PushLog:
		return push.NewLogSender(), nil
	}
	return nil, fmt.Errorf("unknown push provider %q", cfg.Push.Provider)
}

// NewVerifier returns the bearer-token verifier named by cfg.Auth.Mode.
func NewVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthJWT:
		return auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	case config.AuthFirebase:
		return auth.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseCredentials)
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
}
