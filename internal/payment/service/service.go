package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	"findash/internal/payment"
)

var (
	// ErrNoMapping is a business failure: the plan has no sandbox subscription.
	ErrNoMapping     = errors.New("no subscription mapping")
	ErrInvalidAmount = errors.New("amount must be positive")
)

type mappingError struct{ plan string }

func (e *mappingError) Error() string { return "No subscription ID for plan: " + e.plan }

func (e *mappingError) Is(target error) bool { return target == ErrNoMapping }

type MappingStore interface {
	Load(ctx context.Context) (payment.Mapping, error)
}

type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

type Service struct {
	mappings MappingStore
	gateway  Gateway
	activity ActivityLog
	log      logrus.FieldLogger
}

func NewService(mappings MappingStore, gateway Gateway, activity ActivityLog, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{mappings: mappings, gateway: gateway, activity: activity, log: log.WithField("component", "payments")}
}

func (s *Service) Mode() string { return s.gateway.Name() }

func (s *Service) resolve(ctx context.Context, plan string) (string, error) {
	m, err := s.mappings.Load(ctx)
	if err != nil {
		return "", err
	}
	id := m.Subscriptions[plan]
	if id == "" {
		return "", &mappingError{plan: plan}
	}
	return id, nil
}

func (s *Service) fail(ctx context.Context, action payment.Action, plan string, err error) error {
	s.log.WithError(err).WithFields(logrus.Fields{"plan": plan, "action": action}).Warn("payment action failed")
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryError, fmt.Sprintf("Payment %s for %s failed: %s", action, plan, err.Error()), nil)
	}
	return err
}

// Cancel cancels the processor subscription mapped to plan immediately.
func (s *Service) Cancel(ctx context.Context, plan string) (payment.Result, error) {
	subID, err := s.resolve(ctx, plan)
	if err != nil {
		return payment.Result{}, s.fail(ctx, payment.ActionCancel, plan, err)
	}
	status, err := s.gateway.CancelSubscription(ctx, subID)
	if err != nil {
		return payment.Result{}, s.fail(ctx, payment.ActionCancel, plan, err)
	}
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, fmt.Sprintf("Canceled %s billing (%s).", plan, subID),
			map[string]interface{}{"subscription_id": subID, "mode": s.gateway.Name()})
	}
	return payment.Result{
		Success:        true,
		Action:         payment.ActionCancel,
		Plan:           plan,
		SubscriptionID: subID,
		Status:         status,
		Mode:           s.gateway.Name(),
	}, nil
}

// Refund refunds the latest paid invoice of the plan's subscription.
func (s *Service) Refund(ctx context.Context, plan string) (payment.Result, error) {
	subID, err := s.resolve(ctx, plan)
	if err != nil {
		return payment.Result{}, s.fail(ctx, payment.ActionRefund, plan, err)
	}
	refundID, amount, err := s.gateway.RefundLatest(ctx, subID)
	if err != nil {
		return payment.Result{}, s.fail(ctx, payment.ActionRefund, plan, err)
	}
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategorySuccess, fmt.Sprintf("Refunded %s ($%s).", plan, amount.StringFixed(2)),
			map[string]interface{}{"refund_id": refundID, "subscription_id": subID})
	}
	return payment.Result{
		Success:        true,
		Action:         payment.ActionRefund,
		Plan:           plan,
		SubscriptionID: subID,
		RefundID:       refundID,
		Amount:         amount,
		Mode:           s.gateway.Name(),
	}, nil
}

// Deposit creates a one-off payment intent, used by rescue plans to off-ramp funds.
func (s *Service) Deposit(ctx context.Context, amount decimal.Decimal, user string) (payment.Intent, error) {
	if !amount.IsPositive() {
		return payment.Intent{}, ErrInvalidAmount
	}
	id, err := s.gateway.CreatePaymentIntent(ctx, amount, "USDC off-ramp deposit for "+user)
	if err != nil {
		return payment.Intent{}, errors.Wrap(err, "deposit")
	}
	prefix := ""
	if s.gateway.Name() == "mock" {
		prefix = "[MOCK] "
	}
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategorySuccess, fmt.Sprintf("%sDeposit $%s (pi: %s)", prefix, amount.StringFixed(2), id), nil)
	}
	return payment.Intent{ID: id, Amount: amount, Status: "success", Mode: s.gateway.Name()}, nil
}

// Checkout opens a subscription checkout session for plan at the monthly amount.
func (s *Service) Checkout(ctx context.Context, user, plan string, amount decimal.Decimal) (payment.Checkout, error) {
	if !amount.IsPositive() {
		return payment.Checkout{}, ErrInvalidAmount
	}
	m, err := s.mappings.Load(ctx)
	if err != nil {
		s.log.WithError(err).Debug("no mapping, checkout without customer")
	}
	id, url, err := s.gateway.CreateCheckoutSession(ctx, plan, amount, m.CustomerID)
	if err != nil {
		return payment.Checkout{}, errors.Wrap(err, "checkout")
	}
	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryInfo, fmt.Sprintf("Checkout session for %s (%s).", plan, user), map[string]interface{}{"session_id": id})
	}
	return payment.Checkout{ID: id, URL: url, Plan: plan, User: user, Mode: s.gateway.Name()}, nil
}

// IsBusiness reports whether err is a known processor-side refusal rather
// than an outage.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrNoMapping) || errors.Is(err, ErrNoInvoice) || errors.Is(err, ErrNoPaymentIntent)
}
