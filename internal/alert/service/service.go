package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/internal/alert"
	"findash/internal/auditlog"
	"findash/internal/metrics"
)

var (
	ErrNotFound     = errors.New("alert not found")
	ErrUnknownEvent = errors.New("unknown demo event type")
)

type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

// Service keeps the bounded alert list. Alerts are kept oldest first
// internally and returned newest first.
type Service struct {
	mu     sync.Mutex
	alerts []alert.Alert
	nextID int64
	max    int

	activity   ActivityLog
	demoWallet string
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewService(max int, demoWallet string, activity ActivityLog, log logrus.FieldLogger) *Service {
	if max <= 0 {
		max = 200
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		nextID:     1,
		max:        max,
		activity:   activity,
		demoWallet: demoWallet,
		log:        log.WithField("component", "alerts"),
		now:        time.Now,
	}
}

// Add stores a new alert. While an unresolved alert with the same category
// and message exists, the existing one is returned and created is false.
func (s *Service) Add(ctx context.Context, a alert.Alert) (stored alert.Alert, created bool) {
	a = alert.Advise(a)

	s.mu.Lock()
	for _, ex := range s.alerts {
		if !ex.Resolved && ex.Category == a.Category && ex.Message == a.Message {
			s.mu.Unlock()
			return ex, false
		}
	}
	a.ID = s.nextID
	s.nextID++
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	a.Resolved = false
	s.alerts = append(s.alerts, a)
	if over := len(s.alerts) - s.max; over > 0 {
		s.alerts = append([]alert.Alert(nil), s.alerts[over:]...)
	}
	s.updateGauge()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"alert_id": a.ID, "level": a.Level, "type": a.Category}).Info(a.Message)
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAlert, fmt.Sprintf("ALERT [%s]: %s", strings.ToUpper(string(a.Category)), a.Message),
			map[string]interface{}{"alert_id": a.ID, "level": a.Level})
	}
	return a, true
}

// caller holds mu
func (s *Service) updateGauge() {
	n := 0
	for _, a := range s.alerts {
		if !a.Resolved {
			n++
		}
	}
	metrics.ActiveAlerts.Set(float64(n))
}

type Query struct {
	Limit           int
	Level           alert.Level
	Search          string
	IncludeResolved bool
}

// List returns alerts newest first.
func (s *Service) List(q Query) []alert.Alert {
	s.mu.Lock()
	all := make([]alert.Alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if q.IncludeResolved || !s.alerts[i].Resolved {
			all = append(all, s.alerts[i])
		}
	}
	s.mu.Unlock()

	out := alert.Filter(all, q.Level, q.Search)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Resolve marks an alert resolved. Resolving twice is a no-op and reports
// changed=false.
func (s *Service) Resolve(ctx context.Context, id int64) (a alert.Alert, changed bool, err error) {
	s.mu.Lock()
	idx := -1
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return alert.Alert{}, false, ErrNotFound
	}
	if s.alerts[idx].Resolved {
		a = s.alerts[idx]
		s.mu.Unlock()
		return a, false, nil
	}
	s.alerts[idx].Resolved = true
	a = s.alerts[idx]
	s.updateGauge()
	s.mu.Unlock()

	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, "Resolved alert: "+a.Message, map[string]interface{}{"alert_id": a.ID})
	}
	return a, true, nil
}

// ResolveMatching resolves every active alert whose message starts with
// prefix (case-insensitive) and returns how many changed.
func (s *Service) ResolveMatching(ctx context.Context, prefix string) int {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return 0
	}
	var ids []int64
	s.mu.Lock()
	for _, a := range s.alerts {
		if !a.Resolved && strings.HasPrefix(strings.ToLower(a.Message), prefix) {
			ids = append(ids, a.ID)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, changed, err := s.Resolve(ctx, id); err == nil && changed {
			n++
		}
	}
	return n
}

func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.alerts = nil
	s.updateGauge()
	s.mu.Unlock()
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, "Alerts cleared", nil)
	}
}

// Trigger injects a canned demo alert.
func (s *Service) Trigger(ctx context.Context, eventType string) (alert.Alert, error) {
	a, ok := alert.DemoEvent(eventType, s.demoWallet, s.now())
	if !ok {
		return alert.Alert{}, errors.Wrap(ErrUnknownEvent, eventType)
	}
	stored, _ := s.Add(ctx, a)
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, "Demo event triggered: "+eventType, nil)
	}
	return stored, nil
}
