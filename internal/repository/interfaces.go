// Package repository declares the storage contracts the services depend on.
// Implementations live in the memory and redisstore subpackages; services only
// ever see these interfaces.
package repository

import (
	"context"
	"errors"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
)

// BatchGetLimit is the most ids UserRepository.GetMany accepts in one call.
// Callers with more ids must chunk.
const BatchGetLimit = 10

// ErrBatchTooLarge is returned by GetMany when more than BatchGetLimit ids are
// requested.
var ErrBatchTooLarge = errors.New("batch get exceeds limit")

// PresenceRepository stores one PresenceRecord per user. It never filters by
// freshness; callers decide what "now" is.
type PresenceRepository interface {
	// Get returns (nil, nil) if the user has no record.
	Get(ctx context.Context, userID string) (*entities.PresenceRecord, error)
	// Upsert overwrites the user's record, including its geohash index entry.
	Upsert(ctx context.Context, record *entities.PresenceRecord) error
	// Delete is idempotent.
	Delete(ctx context.Context, userID string) error
	// QueryByGeohashRanges runs one ordered scan per range (at most
	// limitPerRange rows each) and returns the union, de-duplicated by user
	// with the first occurrence winning.
	QueryByGeohashRanges(ctx context.Context, ranges []geo.Range, limitPerRange int) ([]*entities.PresenceRecord, error)
}

// UserRepository stores user documents: public profile plus location control.
type UserRepository interface {
	// Get returns (nil, nil) if the user does not exist.
	Get(ctx context.Context, userID string) (*entities.User, error)
	// GetMany returns the users that exist among ids, keyed by id. It accepts
	// at most BatchGetLimit ids.
	GetMany(ctx context.Context, ids []string) (map[string]*entities.User, error)
	// Put writes the whole document.
	Put(ctx context.Context, user *entities.User) error
	// UpdateControl merges patch into the user's control state, creating the
	// document with an empty profile if it does not exist yet.
	UpdateControl(ctx context.Context, userID string, patch entities.ControlPatch) error
}

// DeviceRepository stores push registrations per (user, device).
type DeviceRepository interface {
	// Upsert merges the registration keyed by (UserID, DeviceID).
	Upsert(ctx context.Context, device *entities.DeviceRegistration) error
	// ListEnabled returns the user's enabled registrations.
	ListEnabled(ctx context.Context, userID string) ([]*entities.DeviceRegistration, error)
}

// CooldownRepository stores NotificationCooldownState with optimistic
// concurrency.
type CooldownRepository interface {
	// Get returns a zero state (Version 0) if nothing was recorded yet.
	Get(ctx context.Context, userID string) (*entities.NotificationCooldownState, error)
	// CompareAndSwap stores next only if the stored version still equals
	// next.Version, and bumps the version on success. It returns false,
	// without error, when another writer got there first.
	CompareAndSwap(ctx context.Context, next *entities.NotificationCooldownState) (bool, error)
}
