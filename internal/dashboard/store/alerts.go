package store

import (
	"context"
	"strconv"
	"strings"

	"findash/internal/alert"
)

// Alerts is the active-alert panel. Resolved alerts leave the collection.
type Alerts struct {
	*Store[alert.Alert]
	resolve func(ctx context.Context, id int64) error
}

func NewAlerts(fetch Fetcher[alert.Alert], resolve func(ctx context.Context, id int64) error, notify Notifier, opts ...Option) *Alerts {
	var active Fetcher[alert.Alert]
	if fetch != nil {
		active = func(ctx context.Context) ([]alert.Alert, error) {
			all, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			out := all[:0:0]
			for _, a := range all {
				if !a.Resolved {
					out = append(out, a)
				}
			}
			return out, nil
		}
	}
	return &Alerts{Store: New[alert.Alert]("alerts", active, notify, opts...), resolve: resolve}
}

// Filter returns exactly the active alerts matching level and text.
func (s *Alerts) Filter(level alert.Level, text string) []alert.Alert {
	return alert.Filter(s.Snapshot().Items, level, text)
}

// Resolve removes the alert from the active set. Resolving an alert that is
// no longer active does nothing.
func (s *Alerts) Resolve(ctx context.Context, id int64) error {
	var remote func(context.Context) error
	if s.resolve != nil {
		remote = func(ctx context.Context) error { return s.resolve(ctx, id) }
	}
	_, err := s.Remove(ctx, strconv.FormatInt(id, 10), "resolve alert", remote)
	return err
}

// ResolveMentioning resolves every active alert whose message contains text.
func (s *Alerts) ResolveMentioning(ctx context.Context, text string) int {
	needle := strings.ToLower(text)
	n := 0
	for _, a := range s.Snapshot().Items {
		if !strings.Contains(strings.ToLower(a.Message), needle) {
			continue
		}
		if err := s.Resolve(ctx, a.ID); err == nil {
			n++
		}
	}
	return n
}
