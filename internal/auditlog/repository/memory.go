package repository

import (
	"context"
	"sort"
	"sync"

	"findash/internal/auditlog"
)

// MemoryRepo keeps entries for the life of the process.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []auditlog.Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Load(_ context.Context, limit int) ([]auditlog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]auditlog.Entry(nil), r.entries...)
	sortDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Save(_ context.Context, e auditlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) Prune(_ context.Context, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sortDesc(r.entries)
	if len(r.entries) > keep {
		r.entries = r.entries[:keep]
	}
	return nil
}

func (r *MemoryRepo) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	return nil
}

func sortDesc(entries []auditlog.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
