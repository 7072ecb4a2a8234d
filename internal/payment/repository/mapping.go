package repository

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"

	"findash/internal/payment"
)

// FileMapping reads the plan mapping from a JSON file on every lookup so edits
// made by the sandbox setup tooling are picked up without a restart.
type FileMapping struct {
	path string
}

func NewFileMapping(path string) *FileMapping {
	return &FileMapping{path: path}
}

func (f *FileMapping) Load(ctx context.Context) (payment.Mapping, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return payment.Mapping{}, errors.Wrapf(err, "read mapping %s", f.path)
	}
	var m payment.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return payment.Mapping{}, errors.Wrapf(err, "decode mapping %s", f.path)
	}
	return m, nil
}

// StaticMapping serves a fixed mapping, used when no file is configured.
type StaticMapping struct {
	mu sync.RWMutex
	m  payment.Mapping
}

func NewStaticMapping(m payment.Mapping) *StaticMapping {
	return &StaticMapping{m: m}
}

func (s *StaticMapping) Load(ctx context.Context) (payment.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := payment.Mapping{CustomerID: s.m.CustomerID, Subscriptions: make(map[string]string, len(s.m.Subscriptions))}
	for k, v := range s.m.Subscriptions {
		out.Subscriptions[k] = v
	}
	return out, nil
}
