// Package store holds the dashboard's per-panel state. Each Store keeps one
// entity collection plus a version counter: every local mutation bumps the
// version, and a refresh that was started before the latest mutation is
// dropped instead of overwriting the optimistic value.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
)

var ErrNotFound = errors.New("entity not found")

type Entity interface {
	EntityID() string
}

// Notifier receives user-visible failures. The auditlog relay satisfies it.
type Notifier interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

type Fetcher[T Entity] func(ctx context.Context) ([]T, error)

// View is an immutable copy of a store's contents.
type View[T Entity] struct {
	Items   []T
	Version uint64
}

// Intent is one optimistic mutation. Apply computes the local transition
// (ok=false when it does not apply). Call performs the remote side and may
// return the authoritative collection, or nil to keep the optimistic value.
// Undo, if set, runs under the store lock when a failed call is rolled back,
// so side effects of Apply are reverted together with the entity.
type Intent[T Entity] struct {
	Name  string
	Apply func(T) (T, bool)
	Call  func(ctx context.Context) ([]T, error)
	Undo  func(prev, optimistic T)
}

type options struct {
	rollback bool
	log      logrus.FieldLogger
}

type Option func(*options)

// WithRollback restores the previous value when the remote call fails.
// Without it the optimistic value stays.
func WithRollback() Option {
	return func(o *options) { o.rollback = true }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

type Store[T Entity] struct {
	name   string
	fetch  Fetcher[T]
	notify Notifier
	opts   options

	mu      sync.RWMutex
	items   []T
	version uint64
}

func New[T Entity](name string, fetch Fetcher[T], notify Notifier, opts ...Option) *Store[T] {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	o.log = o.log.WithField("store", name)
	return &Store[T]{name: name, fetch: fetch, notify: notify, opts: o}
}

func (s *Store[T]) Snapshot() View[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View[T]{Items: append([]T(nil), s.items...), Version: s.version}
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

func (s *Store[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Reset replaces the contents unconditionally and bumps the version.
func (s *Store[T]) Reset(items []T) {
	s.mu.Lock()
	s.items = append([]T(nil), items...)
	s.version++
	s.mu.Unlock()
}

// Replace installs items fetched when the store was at version seen. It
// reports false, leaving the store untouched, if a mutation happened since.
func (s *Store[T]) Replace(seen uint64, items []T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != seen {
		return false
	}
	s.items = append([]T(nil), items...)
	return true
}

// Refresh reloads the whole collection. applied is false when the result
// was stale and discarded.
func (s *Store[T]) Refresh(ctx context.Context) (applied bool, err error) {
	if s.fetch == nil {
		return false, nil
	}
	seen := s.Version()
	items, err := s.fetch(ctx)
	if err != nil {
		s.opts.log.WithError(err).Warn("refresh failed, keeping current state")
		return false, err
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if !s.Replace(seen, items) {
		s.opts.log.WithField("seen", seen).Debug("discarding stale refresh")
		return false, nil
	}
	return true, nil
}

// Mutate applies intent to the entity id. A transition that does not apply
// is a no-op and makes no remote call.
func (s *Store[T]) Mutate(ctx context.Context, id string, intent Intent[T]) (changed bool, err error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return false, errors.Wrapf(ErrNotFound, "%s %s", s.name, id)
	}
	prev := s.items[i]
	next, ok := intent.Apply(prev)
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	s.items[i] = next
	s.version++
	mine := s.version
	s.mu.Unlock()

	if intent.Call == nil {
		return true, nil
	}
	authoritative, err := intent.Call(ctx)
	if err != nil {
		s.fail(ctx, id, intent.Name, err, mine, func() {
			if i := s.index(id); i >= 0 {
				s.items[i] = prev
				if intent.Undo != nil {
					intent.Undo(prev, next)
				}
			}
		})
		return true, err
	}
	if authoritative != nil {
		s.reconcile(id, mine, authoritative)
	}
	return true, nil
}

// reconcile takes the server's view. If other mutations landed meanwhile,
// only the entity this call touched is updated.
func (s *Store[T]) reconcile(id string, mine uint64, items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == mine {
		s.items = append([]T(nil), items...)
		return
	}
	for _, it := range items {
		if it.EntityID() == id {
			if i := s.index(id); i >= 0 {
				s.items[i] = it
			}
			return
		}
	}
}

// fail reports a failed remote call. restore runs under the lock, and only
// when rollback is enabled and nothing else changed the store since.
func (s *Store[T]) fail(ctx context.Context, id, name string, err error, mine uint64, restore func()) {
	s.opts.log.WithError(err).WithField("id", id).Warnf("%s failed", name)
	if s.opts.rollback {
		s.mu.Lock()
		if s.version == mine {
			restore()
			s.version++
		}
		s.mu.Unlock()
	}
	if s.notify != nil {
		s.notify.Push(ctx, auditlog.CategoryError, fmt.Sprintf("Failed to %s %s: %v", name, id, err), map[string]interface{}{"store": s.name})
	}
}

// Remove drops id locally, then calls remote. Removing an absent id is a
// no-op. With rollback, a failed call puts the entity back.
func (s *Store[T]) Remove(ctx context.Context, id string, name string, remote func(ctx context.Context) error) (removed bool, err error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	prev := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.version++
	mine := s.version
	s.mu.Unlock()

	if remote == nil {
		return true, nil
	}
	if err := remote(ctx); err != nil {
		s.fail(ctx, id, name, err, mine, func() {
			at := i
			if at > len(s.items) {
				at = len(s.items)
			}
			s.items = append(s.items[:at:at], append([]T{prev}, s.items[at:]...)...)
		})
		return true, err
	}
	return true, nil
}

func (s *Store[T]) index(id string) int {
	for i, it := range s.items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}
