package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	"findash/internal/metrics"
)

// Repository persists the feed. Load returns entries newest first.
type Repository interface {
	Load(ctx context.Context, limit int) ([]auditlog.Entry, error)
	Save(ctx context.Context, e auditlog.Entry) error
	Prune(ctx context.Context, keep int) error
	Clear(ctx context.Context) error
}

// Relay is the single ordered activity feed every component writes to.
// Entries are kept newest first and bounded by maxEntries.
type Relay struct {
	mu         sync.RWMutex
	entries    []auditlog.Entry
	nextID     int64
	maxEntries int
	repo       Repository
	log        logrus.FieldLogger

	subMu  sync.Mutex
	subs   map[int]chan auditlog.Entry
	subSeq int

	now func() time.Time
}

func NewRelay(repo Repository, maxEntries int, log logrus.FieldLogger) *Relay {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Relay{
		nextID:     1,
		maxEntries: maxEntries,
		repo:       repo,
		log:        log.WithField("component", "auditlog"),
		subs:       make(map[int]chan auditlog.Entry),
		now:        time.Now,
	}
}

// Load fills the in-memory feed from the repository.
func (r *Relay) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	entries, err := r.repo.Load(ctx, r.maxEntries)
	if err != nil {
		return errors.Wrap(err, "load audit log")
	}
	sortNewestFirst(entries)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = entries
	for _, e := range entries {
		if e.ID >= r.nextID {
			r.nextID = e.ID + 1
		}
	}
	metrics.AuditLogEntries.Set(float64(len(r.entries)))
	return nil
}

// Push records a new entry stamped with the current time. Persistence errors
// are logged; the entry is still visible in the feed.
func (r *Relay) Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry {
	if !category.Valid() {
		category = auditlog.CategoryInfo
	}

	return r.record(ctx, auditlog.Entry{
		Category: category,
		Message:  message,
		Details:  details,
	})
}

// Import adds an entry written elsewhere, keeping its category, message and
// timestamp. It gets a local id.
func (r *Relay) Import(ctx context.Context, e auditlog.Entry) auditlog.Entry {
	if !e.Category.Valid() {
		e.Category = auditlog.CategoryInfo
	}
	return r.record(ctx, e)
}

func (r *Relay) record(ctx context.Context, e auditlog.Entry) auditlog.Entry {
	r.mu.Lock()
	e.ID = r.nextID
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	r.nextID++
	r.insert(e)
	pruned := len(r.entries) > r.maxEntries
	if pruned {
		r.entries = r.entries[:r.maxEntries]
	}
	metrics.AuditLogEntries.Set(float64(len(r.entries)))
	r.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.Save(ctx, e); err != nil {
			r.log.WithError(err).WithField("entry_id", e.ID).Warn("failed to persist audit entry")
		} else if pruned {
			if err := r.repo.Prune(ctx, r.maxEntries); err != nil {
				r.log.WithError(err).Warn("failed to prune audit log")
			}
		}
	}

	r.broadcast(e)
	return e
}

// insert keeps entries sorted by timestamp descending. Caller holds mu.
func (r *Relay) insert(e auditlog.Entry) {
	i := sort.Search(len(r.entries), func(i int) bool {
		return !r.entries[i].Timestamp.After(e.Timestamp)
	})
	r.entries = append(r.entries, auditlog.Entry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e
}

// List returns matching entries newest first.
func (r *Relay) List(q auditlog.Query) []auditlog.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]auditlog.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if !q.Match(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// GroupByDay buckets matching entries by calendar day in loc, newest day first.
func (r *Relay) GroupByDay(q auditlog.Query, loc *time.Location) []auditlog.DayGroup {
	if loc == nil {
		loc = time.Local
	}
	return GroupByDay(r.List(q), loc)
}

// GroupByDay expects entries newest first.
func GroupByDay(entries []auditlog.Entry, loc *time.Location) []auditlog.DayGroup {
	var groups []auditlog.DayGroup
	for _, e := range entries {
		day := e.Timestamp.In(loc).Format("2006-01-02")
		if n := len(groups); n > 0 && groups[n-1].Day == day {
			groups[n-1].Entries = append(groups[n-1].Entries, e)
			continue
		}
		groups = append(groups, auditlog.DayGroup{Day: day, Entries: []auditlog.Entry{e}})
	}
	return groups
}

func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Relay) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.entries = nil
	metrics.AuditLogEntries.Set(0)
	r.mu.Unlock()

	if r.repo != nil {
		return errors.Wrap(r.repo.Clear(ctx), "clear audit log")
	}
	return nil
}

// Subscribe returns a channel receiving every new entry. Slow subscribers
// miss entries rather than block writers. Call cancel to unsubscribe.
func (r *Relay) Subscribe(buffer int) (<-chan auditlog.Entry, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan auditlog.Entry, buffer)

	r.subMu.Lock()
	id := r.subSeq
	r.subSeq++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
			close(ch)
		})
	}
}

func (r *Relay) broadcast(e auditlog.Entry) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for id, ch := range r.subs {
		select {
		case ch <- e:
		default:
			r.log.WithField("subscriber", id).Debug("dropping entry for slow subscriber")
		}
	}
}

func sortNewestFirst(entries []auditlog.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
