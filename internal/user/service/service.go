package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	"findash/internal/subscription"
	"findash/internal/user"
)

// SubscriptionSeeder creates the demo subscriptions of a new guest.
type SubscriptionSeeder interface {
	Snapshot(ctx context.Context, userID string) (subscription.Snapshot, error)
}

type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

type UserService struct {
	repo     user.Repository
	subs     SubscriptionSeeder
	activity ActivityLog
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewUserService(repo user.Repository, subs SubscriptionSeeder, activity ActivityLog, log logrus.FieldLogger) *UserService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UserService{repo: repo, subs: subs, activity: activity, log: log.WithField("component", "users"), now: time.Now}
}

// GuestLogin creates a guest_<hex8> account with its own demo subscriptions.
func (s *UserService) GuestLogin(ctx context.Context) (*user.User, error) {
	u := &user.User{
		Username:  "guest_" + uuid.NewString()[:8],
		Plan:      "Free",
		CreatedAt: s.now(),
	}

	if s.subs != nil {
		snap, err := s.subs.Snapshot(ctx, u.Username)
		if err != nil {
			return nil, errors.Wrap(err, "seed guest subscriptions")
		}
		u.Plan, u.Active, u.RenewsOn = summarize(snap)
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("guest user created")
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, "Guest user created", map[string]interface{}{"id": u.ID, "plan": u.Plan})
	}
	return u, nil
}

// summarize picks the next active subscription to renew as the headline plan.
func summarize(snap subscription.Snapshot) (plan string, active bool, renews *time.Time) {
	plan = "Free"
	for _, sub := range snap.Subs {
		if sub.Status != subscription.StatusActive && sub.Status != subscription.StatusTrialing {
			continue
		}
		if sub.RenewsOn == nil {
			continue
		}
		if renews == nil || sub.RenewsOn.Before(*renews) {
			r := *sub.RenewsOn
			renews = &r
			plan = sub.Plan
			active = true
		}
	}
	return plan, active, renews
}

func (s *UserService) Get(ctx context.Context, id int64) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) List(ctx context.Context, limit int) ([]user.User, error) {
	return s.repo.List(ctx, limit)
}

func (s *UserService) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, "All users cleared", nil)
	}
	return nil
}
