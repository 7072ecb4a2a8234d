package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"findash/internal/auditlog"
)

// FileRepo stores the whole feed as one JSON array, rewritten on every change.
type FileRepo struct {
	mu   sync.Mutex
	path string
	mem  *MemoryRepo
}

func NewFileRepo(path string) (*FileRepo, error) {
	r := &FileRepo{path: path, mem: NewMemoryRepo()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r.mem.entries); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return r, nil
}

func (r *FileRepo) Load(ctx context.Context, limit int) ([]auditlog.Entry, error) {
	return r.mem.Load(ctx, limit)
}

func (r *FileRepo) Save(ctx context.Context, e auditlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.mem.Save(ctx, e)
	return r.flush(ctx)
}

func (r *FileRepo) Prune(ctx context.Context, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.mem.Prune(ctx, keep)
	return r.flush(ctx)
}

func (r *FileRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.mem.Clear(ctx)
	return r.flush(ctx)
}

func (r *FileRepo) flush(ctx context.Context) error {
	entries, _ := r.mem.Load(ctx, 0)
	if entries == nil {
		entries = []auditlog.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode audit log")
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".audit-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write audit log")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close audit log")
	}
	return errors.Wrap(os.Rename(tmp.Name(), r.path), "replace audit log")
}
