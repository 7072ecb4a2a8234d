package repository

import (
	"context"
	"sync"

	"findash/internal/subscription"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]subscription.Snapshot
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]subscription.Snapshot)}
}

func (r *MemoryRepo) Get(_ context.Context, userID string) (*subscription.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	out := subscription.Snapshot{Balance: snap.Balance, Subs: append([]subscription.Subscription(nil), snap.Subs...)}
	return &out, nil
}

func (r *MemoryRepo) Put(_ context.Context, userID string, snap subscription.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = subscription.Snapshot{Balance: snap.Balance, Subs: append([]subscription.Subscription(nil), snap.Subs...)}
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
	return nil
}
