// Package config centralizes all application configuration into typed structs.
//
// Go Learning Note — Configuration Management:
// Go projects typically manage configuration in one of these ways:
//  1. Struct literals with defaults (NewDefaultConfig)
//  2. Environment variables, optionally seeded from a .env file (Load)
//  3. Config files (YAML/TOML) via "github.com/spf13/viper"
//  4. Command-line flags via the standard "flag" package
//
// This package combines the first two: every setting has a typed default,
// and Load lets the environment override the ones that differ per
// deployment. Typed structs (not raw strings/maps) give compile-time safety.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Push providers.
const (
	PushExpo = "expo"
	PushFCM  = "fcm"
	PushLog  = "log"
)

// Auth modes.
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Config is the top-level configuration container.
//
// Go Learning Note — Struct Composition:
// Go doesn't have classes or inheritance. Config "has a" ServerConfig,
// PresenceConfig, etc. Each service receives the whole *Config and reads only
// the section it cares about.
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Store    StoreConfig
	Presence PresenceConfig
	Nearby   NearbyConfig
	Alerts   AlertsConfig
	Push     PushConfig
}

// ServerConfig holds HTTP server settings.
//
// Go Learning Note — time.Duration:
// Go uses time.Duration (an int64 of nanoseconds) instead of raw integers for
// timeouts and intervals. "30 * time.Second" is self-documenting; "30" is not.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration // Deadline put on every request context
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode                string // "jwt" or "firebase"
	JWTSecret           string
	JWTIssuer           string
	FirebaseCredentials string // service account JSON path; empty uses ADC
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend  string // "memory" or "redis"
	RedisURL string
}

// PresenceConfig controls ping throttling and presence expiry.
type PresenceConfig struct {
	FreshnessWindow        time.Duration // A record is stale this long after its last accepted ping
	ThrottleWindow         time.Duration
	ThrottleDistanceMeters float64
	RetentionAfterExpiry   time.Duration // How long stale records linger before the sweeper drops them
	SweepInterval          time.Duration
}

// NearbyConfig controls nearby queries. Radii are in feet because that is the
// unit clients see.
type NearbyConfig struct {
	DefaultRadiusFt  float64
	MinRadiusFt      float64
	MaxRadiusFt      float64
	LimitPerRange    int // Rows read per geohash range scan
	ProfileBatchSize int // Ids per profile batch read; the store rejects more than 10
}

// AlertsConfig controls crowd alerts.
type AlertsConfig struct {
	MinCrowdSize      int
	ImpactedLimit     int // Neighbors of the sender re-evaluated on each ping
	Cooldown          time.Duration
	FingerprintSample int
	Concurrency       int // Subjects evaluated in parallel during fanout
}

// PushConfig selects the push gateway.
type PushConfig struct {
	Provider            string // "expo", "fcm" or "log"
	ExpoURL             string
	Timeout             time.Duration
	FirebaseCredentials string
}

// NewDefaultConfig returns a Config populated with the production defaults.
//
// Go Learning Note — Constructor Functions:
// Go has no constructors. By convention, New<Type>() functions serve the same
// purpose. They return a pointer (*Config) so callers share one instance
// instead of copying the struct on every assignment.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   35 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthJWT,
		},
		Store: StoreConfig{
			Backend:  StoreMemory,
			RedisURL: "redis://localhost:6379/0",
		},
		Presence: PresenceConfig{
			FreshnessWindow:        10 * time.Minute,
			ThrottleWindow:         20 * time.Second,
			ThrottleDistanceMeters: 3,
			RetentionAfterExpiry:   24 * time.Hour,
			SweepInterval:          5 * time.Minute,
		},
		Nearby: NearbyConfig{
			DefaultRadiusFt:  50,
			MinRadiusFt:      1,
			MaxRadiusFt:      100,
			LimitPerRange:    200,
			ProfileBatchSize: 10,
		},
		Alerts: AlertsConfig{
			MinCrowdSize:      8,
			ImpactedLimit:     30,
			Cooldown:          30 * time.Minute,
			FingerprintSample: 10,
			Concurrency:       8,
		},
		Push: PushConfig{
			Provider: PushExpo,
			ExpoURL:  "https://exp.host/--/api/v2/push/send",
			Timeout:  10 * time.Second,
		},
	}
}

// Load returns the defaults overridden by environment variables. A .env file
// in the working directory is read first if present; variables already set in
// the environment win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	cfg := NewDefaultConfig()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv reads overrides through lookup so tests can feed a map instead of
// the process environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		if v[0] != ':' {
			v = ":" + v
		}
		c.Server.Port = v
	}
	dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	str("AUTH_MODE", &c.Auth.Mode)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("JWT_ISSUER", &c.Auth.JWTIssuer)
	str("FIREBASE_CREDENTIALS", &c.Auth.FirebaseCredentials)

	str("STORE_BACKEND", &c.Store.Backend)
	str("REDIS_URL", &c.Store.RedisURL)

	dur("FRESHNESS_WINDOW", &c.Presence.FreshnessWindow)
	dur("THROTTLE_WINDOW", &c.Presence.ThrottleWindow)
	num("THROTTLE_DISTANCE_METERS", &c.Presence.ThrottleDistanceMeters)
	dur("PRESENCE_RETENTION", &c.Presence.RetentionAfterExpiry)
	dur("PRESENCE_SWEEP_INTERVAL", &c.Presence.SweepInterval)

	num("NEARBY_DEFAULT_RADIUS_FT", &c.Nearby.DefaultRadiusFt)
	num("NEARBY_MAX_RADIUS_FT", &c.Nearby.MaxRadiusFt)

	integer("CROWD_ALERT_MIN_USERS", &c.Alerts.MinCrowdSize)
	integer("CROWD_ALERT_IMPACTED_LIMIT", &c.Alerts.ImpactedLimit)
	dur("ALERT_COOLDOWN", &c.Alerts.Cooldown)
	integer("ALERT_CONCURRENCY", &c.Alerts.Concurrency)

	str("PUSH_PROVIDER", &c.Push.Provider)
	str("EXPO_PUSH_URL", &c.Push.ExpoURL)
	dur("PUSH_TIMEOUT", &c.Push.Timeout)
	str("FIREBASE_CREDENTIALS", &c.Push.FirebaseCredentials)

	return errors.Join(errs...)
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	switch c.Push.Provider {
	case PushExpo, PushFCM, PushLog:
	default:
		return fmt.Errorf("unknown PUSH_PROVIDER %q", c.Push.Provider)
	}
	switch c.Auth.Mode {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthFirebase:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}
	if c.Nearby.MinRadiusFt <= 0 || c.Nearby.MaxRadiusFt < c.Nearby.MinRadiusFt {
		return fmt.Errorf("nearby radius bounds [%v, %v] are invalid", c.Nearby.MinRadiusFt, c.Nearby.MaxRadiusFt)
	}
	if c.Nearby.ProfileBatchSize < 1 || c.Nearby.ProfileBatchSize > 10 {
		return fmt.Errorf("profile batch size must be in [1, 10], got %d", c.Nearby.ProfileBatchSize)
	}
	if c.Alerts.Concurrency < 1 {
		return fmt.Errorf("ALERT_CONCURRENCY must be positive, got %d", c.Alerts.Concurrency)
	}

	windows := []struct {
		key string
		d   time.Duration
	}{
		{"FRESHNESS_WINDOW", c.Presence.FreshnessWindow},
		{"THROTTLE_WINDOW", c.Presence.ThrottleWindow},
		{"PRESENCE_SWEEP_INTERVAL", c.Presence.SweepInterval},
		{"ALERT_COOLDOWN", c.Alerts.Cooldown},
	}
	for _, w := range windows {
		if w.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", w.key, w.d)
		}
	}
	if c.Presence.RetentionAfterExpiry < 0 {
		return fmt.Errorf("PRESENCE_RETENTION must not be negative, got %v", c.Presence.RetentionAfterExpiry)
	}
	if c.Presence.ThrottleDistanceMeters < 0 {
		return fmt.Errorf("THROTTLE_DISTANCE_METERS must not be negative, got %v", c.Presence.ThrottleDistanceMeters)
	}
	return nil
}
