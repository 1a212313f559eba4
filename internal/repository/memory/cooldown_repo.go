package memory

import (
	"context"
	"sync"

	"crowdradar/internal/domain/entities"
)

// CooldownRepository keeps alert cooldown state per user. CompareAndSwap is
// the only write path, which makes it the serialization point for concurrent
// alert evaluations of the same user.
type CooldownRepository struct {
	mu     sync.Mutex
	states map[string]entities.NotificationCooldownState
}

func NewCooldownRepository() *CooldownRepository {
	return &CooldownRepository{
		states: make(map[string]entities.NotificationCooldownState),
	}
}

func (r *CooldownRepository) Get(ctx context.Context, userID string) (*entities.NotificationCooldownState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.states[userID]
	if !exists {
		return &entities.NotificationCooldownState{UserID: userID}, nil
	}
	return &state, nil
}

func (r *CooldownRepository) CompareAndSwap(ctx context.Context, next *entities.NotificationCooldownState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.states[next.UserID]
	if current.Version != next.Version {
		return false, nil
	}
	stored := *next
	stored.Version = current.Version + 1
	r.states[next.UserID] = stored
	return true, nil
}
