package dashboard

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	auditsvc "findash/internal/auditlog/service"
	"findash/internal/dashboard/gateway"
)

const logPage = 200

type entryKey struct {
	id int64
	at int64
}

func keyOf(e auditlog.Entry) entryKey {
	return entryKey{id: e.ID, at: e.Timestamp.UnixNano()}
}

// feed is what the panels and the console push to. Every entry lands in the
// local relay; action and error entries are also appended to the backend
// log. merge pulls backend entries into the relay once each.
type feed struct {
	relay *auditsvc.Relay
	gw    *gateway.Gateway
	log   logrus.FieldLogger

	// mu orders forwards against merges so a forwarded entry is marked
	// before any listing can return it.
	mu   sync.Mutex
	seen map[entryKey]struct{}
}

func newFeed(relay *auditsvc.Relay, gw *gateway.Gateway, log logrus.FieldLogger) *feed {
	return &feed{relay: relay, gw: gw, log: log, seen: make(map[entryKey]struct{})}
}

func (f *feed) Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry {
	e := f.relay.Push(ctx, category, message, details)
	if category != auditlog.CategoryAction && category != auditlog.CategoryError {
		return e
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	stored, err := f.gw.AppendLog(ctx, category, message, details)
	if err != nil {
		// no Push here: a failing backend would feed itself
		f.log.WithError(err).WithField("entry_id", e.ID).Warn("failed to forward log entry")
		return e
	}
	if stored.ID != 0 {
		f.seen[keyOf(stored)] = struct{}{}
	}
	return e
}

// merge imports backend entries not seen before and returns how many.
func (f *feed) merge(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.gw.ListLogs(ctx, auditlog.Query{Limit: logPage})
	if err != nil {
		return 0, err
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	n := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.ID == 0 {
			continue
		}
		if _, ok := f.seen[keyOf(e)]; ok {
			continue
		}
		f.relay.Import(ctx, e)
		n++
	}

	// Entries that fell off the page never come back, so only the page is kept.
	if len(entries) > 0 {
		seen := make(map[entryKey]struct{}, len(entries))
		for _, e := range entries {
			seen[keyOf(e)] = struct{}{}
		}
		f.seen = seen
	}
	return n, nil
}
