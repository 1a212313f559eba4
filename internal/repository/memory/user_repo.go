package memory

import (
	"context"
	"fmt"
	"sync"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/repository"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*entities.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*entities.User),
	}
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[userID]
	if !exists {
		return nil, nil
	}
	return cloneUser(user), nil
}

// GetMany mirrors a document store's bounded batch read: more than
// repository.BatchGetLimit ids is an error, and missing ids are simply absent
// from the result.
func (r *UserRepository) GetMany(ctx context.Context, ids []string) (map[string]*entities.User, error) {
	if len(ids) > repository.BatchGetLimit {
		return nil, fmt.Errorf("%w: %d ids", repository.ErrBatchTooLarge, len(ids))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*entities.User, len(ids))
	for _, id := range ids {
		if user, exists := r.users[id]; exists {
			out[id] = cloneUser(user)
		}
	}
	return out, nil
}

func (r *UserRepository) Put(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) UpdateControl(ctx context.Context, userID string, patch entities.ControlPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		user = entities.NewUser(userID, entities.Profile{})
		r.users[userID] = user
	}
	patch.Apply(&user.Control)
	return nil
}

// cloneUser deep-copies the pointer fields of the control state.
func cloneUser(u *entities.User) *entities.User {
	cp := *u
	if u.Control.LastLocationAt != nil {
		t := *u.Control.LastLocationAt
		cp.Control.LastLocationAt = &t
	}
	if u.Control.LastAccuracyMeters != nil {
		a := *u.Control.LastAccuracyMeters
		cp.Control.LastAccuracyMeters = &a
	}
	return &cp
}
