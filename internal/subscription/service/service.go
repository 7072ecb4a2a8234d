package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	"findash/internal/metrics"
	"findash/internal/subscription"
)

var (
	ErrNotFound      = errors.New("subscription not found")
	ErrUnknownAction = errors.New("unknown subscription action")
)

type SubscriptionRepository interface {
	Get(ctx context.Context, userID string) (*subscription.Snapshot, error)
	Put(ctx context.Context, userID string, snap subscription.Snapshot) error
	Delete(ctx context.Context, userID string) error
}

// ActivityLog receives one entry per applied action.
type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

type Service struct {
	mu       sync.Mutex
	repo     SubscriptionRepository
	activity ActivityLog
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(repo SubscriptionRepository, activity ActivityLog, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:     repo,
		activity: activity,
		log:      log.WithField("component", "subscriptions"),
		now:      time.Now,
	}
}

// Snapshot returns the user's subscriptions, seeding the demo fixture on first access.
func (s *Service) Snapshot(ctx context.Context, userID string) (subscription.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID string) (subscription.Snapshot, error) {
	snap, err := s.repo.Get(ctx, userID)
	if err != nil {
		return subscription.Snapshot{}, errors.Wrap(err, "get subscriptions")
	}
	if snap != nil {
		return *snap, nil
	}

	seeded := subscription.Snapshot{Subs: subscription.Seed(s.now()), Balance: subscription.DemoBalance}
	if err := s.repo.Put(ctx, userID, seeded); err != nil {
		return subscription.Snapshot{}, errors.Wrap(err, "seed subscriptions")
	}
	s.log.WithField("user_id", userID).Info("seeded demo subscriptions")
	return seeded, nil
}

// Apply runs pause/resume/cancel on one subscription. An action that does not
// apply to the current status leaves the snapshot untouched and reports changed=false.
// Cancelling debits the plan price from the balance.
func (s *Service) Apply(ctx context.Context, userID, subID string, action subscription.Action) (snap subscription.Snapshot, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case subscription.ActionPause, subscription.ActionResume, subscription.ActionCancel:
	default:
		return subscription.Snapshot{}, false, ErrUnknownAction
	}

	snap, err = s.load(ctx, userID)
	if err != nil {
		return snap, false, err
	}

	idx := -1
	for i, sub := range snap.Subs {
		if sub.ID == subID {
			idx = i
			break
		}
	}
	if idx < 0 {
		metrics.SubscriptionActions.WithLabelValues(string(action), "not_found").Inc()
		return snap, false, ErrNotFound
	}

	sub := snap.Subs[idx]
	to, ok := subscription.Transition(sub.Status, action)
	if !ok {
		metrics.SubscriptionActions.WithLabelValues(string(action), "noop").Inc()
		s.log.WithFields(logrus.Fields{"sub": subID, "status": sub.Status, "action": action}).Debug("action does not apply")
		return snap, false, nil
	}

	sub.Status = to
	snap.Subs[idx] = sub
	msg := fmt.Sprintf("%s %s.", action.Past(), sub.Plan)
	if action == subscription.ActionCancel {
		snap.Balance = snap.Balance.Sub(sub.Price)
		msg = fmt.Sprintf("Canceled %s (refunded $%s).", sub.Plan, sub.Price.StringFixed(2))
	}

	if err := s.repo.Put(ctx, userID, snap); err != nil {
		metrics.SubscriptionActions.WithLabelValues(string(action), "error").Inc()
		return snap, false, errors.Wrap(err, "save subscriptions")
	}
	metrics.SubscriptionActions.WithLabelValues(string(action), "ok").Inc()

	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, msg, map[string]interface{}{
			"user_id":         userID,
			"subscription_id": sub.ID,
			"status":          string(to),
			"balance":         snap.Balance.StringFixed(2),
		})
	}
	return snap, true, nil
}

// Reset restores the demo fixture for the user.
func (s *Service) Reset(ctx context.Context, userID string) (subscription.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, userID); err != nil {
		return subscription.Snapshot{}, errors.Wrap(err, "delete subscriptions")
	}
	snap, err := s.load(ctx, userID)
	if err != nil {
		return snap, err
	}
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryInfo, "Subscriptions reset to demo state.", map[string]interface{}{"user_id": userID})
	}
	return snap, nil
}

// FindByPlan returns the user's subscription for a plan name (case-insensitive).
func (s *Service) FindByPlan(ctx context.Context, userID, plan string) (subscription.Subscription, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return subscription.Subscription{}, err
	}
	p, ok := subscription.LookupPlan(plan)
	if !ok {
		return subscription.Subscription{}, ErrNotFound
	}
	for _, sub := range snap.Subs {
		if sub.Plan == p.Name {
			return sub, nil
		}
	}
	return subscription.Subscription{}, ErrNotFound
}
