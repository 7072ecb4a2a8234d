package repository

import (
	"context"
	"sync"

	"findash/internal/user"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	users []user.User
	next  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{next: 1}
}

func (r *MemoryRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.next
	r.next++
	r.users = append(r.users, *u)
	return nil
}

func (r *MemoryRepository) find(match func(user.User) bool) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.ID == id })
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.Username == username })
}

// List returns the newest limit users in creation order.
func (r *MemoryRepository) List(_ context.Context, limit int) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := 0
	if limit > 0 && len(r.users) > limit {
		start = len(r.users) - limit
	}
	return append([]user.User(nil), r.users[start:]...), nil
}

func (r *MemoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = nil
	return nil
}
