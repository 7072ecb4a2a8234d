package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	"findash/internal/payment"
	"findash/internal/rescue"
	"findash/internal/wallet"
)

var (
	ErrNoPlan            = errors.New("No rescue plan available")
	ErrNotFound          = errors.New("Plan not found")
	ErrInvalidTransition = errors.New("plan is not in a state that allows this action")
	ErrNotApproved       = errors.New("Plan must be approved")
	ErrUnknownAction     = errors.New("unknown step action")
)

type Wallet interface {
	DemoWallet() string
	Balance(ctx context.Context, address string) (wallet.Balance, error)
	Transfer(ctx context.Context, to string, amount decimal.Decimal, token string) (wallet.TxStatus, error)
}

type Payments interface {
	Deposit(ctx context.Context, amount decimal.Decimal, user string) (payment.Intent, error)
	Checkout(ctx context.Context, user, plan string, amount decimal.Decimal) (payment.Checkout, error)
}

type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

// Service owns rescue plans in memory. Plans are generated from an event,
// approved by a human and then executed step by step.
type Service struct {
	mu    sync.Mutex
	plans []rescue.Plan
	next  int

	wallet   Wallet
	payments Payments
	activity ActivityLog
	aliases  map[string]string
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService builds the service. aliases maps names such as JUDGE_WALLET to
// addresses; unknown names are used verbatim.
func NewService(w Wallet, p Payments, activity ActivityLog, aliases map[string]string, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	norm := make(map[string]string, len(aliases))
	for k, v := range aliases {
		norm[strings.ToUpper(k)] = strings.TrimSpace(v)
	}
	return &Service{
		next:     1,
		wallet:   w,
		payments: p,
		activity: activity,
		aliases:  norm,
		log:      log.WithField("component", "rescue"),
		now:      time.Now,
	}
}

func (s *Service) push(ctx context.Context, cat auditlog.Category, msg string, details map[string]interface{}) {
	if s.activity != nil {
		s.activity.Push(ctx, cat, msg, details)
	}
}

func (s *Service) resolveAlias(name string) string {
	if addr, ok := s.aliases[strings.ToUpper(strings.TrimSpace(name))]; ok && addr != "" {
		return addr
	}
	return name
}

func (s *Service) Generate(ctx context.Context, event, user string) (rescue.Plan, error) {
	if user == "" {
		user = "user1"
	}
	bp, ok := rescue.Match(event, user)
	if !ok {
		return rescue.Plan{}, ErrNoPlan
	}

	s.mu.Lock()
	plan := rescue.Plan{
		ID:               fmt.Sprintf("plan_%d", s.next),
		Event:            event,
		Description:      bp.Description,
		Steps:            bp.Steps,
		RequiresApproval: true,
		Status:           rescue.StatusPending,
		CreatedAt:        s.now(),
		User:             user,
	}
	for i := range plan.Steps {
		plan.Steps[i].ID = uuid.NewString()[:8]
	}
	s.next++
	s.plans = append(s.plans, plan)
	out := plan.Clone()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"plan_id": plan.ID, "event": event}).Info("rescue plan generated")
	s.push(ctx, auditlog.CategoryWarning, "Rescue plan generated: "+plan.Description, map[string]interface{}{"event": event, "plan_id": plan.ID})
	return out, nil
}

// List returns the most recent limit plans in creation order, optionally
// restricted to one status.
func (s *Service) List(limit int, status rescue.Status) []rescue.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]rescue.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if status == "" || p.Status == status {
			out = append(out, p.Clone())
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (s *Service) index(id string) int {
	for i := range s.plans {
		if s.plans[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) Approve(ctx context.Context, id string) (rescue.Plan, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return rescue.Plan{}, ErrNotFound
	}
	if s.plans[i].Status != rescue.StatusPending {
		s.mu.Unlock()
		return rescue.Plan{}, ErrInvalidTransition
	}
	now := s.now()
	s.plans[i].Status = rescue.StatusApproved
	s.plans[i].ApprovedAt = &now
	out := s.plans[i].Clone()
	s.mu.Unlock()

	s.push(ctx, auditlog.CategoryAction, "Plan approved: "+id, nil)
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (rescue.Plan, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return rescue.Plan{}, ErrNotFound
	}
	st := s.plans[i].Status
	if st != rescue.StatusPending && st != rescue.StatusApproved {
		s.mu.Unlock()
		return rescue.Plan{}, ErrInvalidTransition
	}
	now := s.now()
	s.plans[i].Status = rescue.StatusCancelled
	s.plans[i].EndedAt = &now
	out := s.plans[i].Clone()
	s.mu.Unlock()

	s.push(ctx, auditlog.CategoryInfo, "Plan cancelled: "+id, nil)
	return out, nil
}

// Execute runs an approved plan's steps in order. The first failing step
// fails the plan; steps already marked success or skipped are not rerun.
func (s *Service) Execute(ctx context.Context, id string) (rescue.Plan, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return rescue.Plan{}, ErrNotFound
	}
	if s.plans[i].Status != rescue.StatusApproved {
		s.mu.Unlock()
		return rescue.Plan{}, ErrNotApproved
	}
	now := s.now()
	s.plans[i].Status = rescue.StatusExecuting
	s.plans[i].StartedAt = &now
	plan := s.plans[i].Clone()
	s.mu.Unlock()

	plan = s.run(ctx, plan)

	s.mu.Lock()
	if j := s.index(id); j >= 0 {
		s.plans[j] = plan.Clone()
	}
	s.mu.Unlock()
	return plan, nil
}

func (s *Service) run(ctx context.Context, plan rescue.Plan) rescue.Plan {
	for i := range plan.Steps {
		st := &plan.Steps[i]
		if st.Status == rescue.StepSuccess || st.Status == rescue.StepSkipped {
			continue
		}
		started := s.now()
		st.StartedAt = &started

		res, err := s.execStep(ctx, st.Action, st.Params, plan)
		ended := s.now()
		st.EndedAt = &ended
		if err != nil {
			st.Status = rescue.StepFailed
			st.Result = map[string]interface{}{"error": err.Error()}
			plan.Status = rescue.StatusFailed
			plan.EndedAt = &ended
			s.log.WithError(err).WithFields(logrus.Fields{"plan_id": plan.ID, "step": st.Action}).Warn("rescue step failed")
			s.push(ctx, auditlog.CategoryError, fmt.Sprintf("Step %s failed: %v", st.Action, err), map[string]interface{}{"plan_id": plan.ID})
			return plan
		}
		st.Status = rescue.StepSuccess
		st.Result = res
	}

	ended := s.now()
	plan.Status = rescue.StatusSucceeded
	plan.EndedAt = &ended
	s.push(ctx, auditlog.CategorySuccess, "Rescue plan executed: "+plan.Description, map[string]interface{}{"plan_id": plan.ID})
	return plan
}

func (s *Service) execStep(ctx context.Context, action string, params map[string]interface{}, plan rescue.Plan) (interface{}, error) {
	switch strings.ToLower(action) {
	case rescue.ActionSellETH:
		s.push(ctx, auditlog.CategoryInfo, fmt.Sprintf("[SIM] Sell %v%% ETH→USDC", params["percent"]), nil)
		return map[string]interface{}{"simulated": true}, nil

	case rescue.ActionTransferUSDC:
		to := s.resolveAlias(fmt.Sprint(params["to"]))
		amount, err := s.transferAmount(ctx, params["amount"])
		if err != nil {
			return nil, err
		}
		tx, err := s.wallet.Transfer(ctx, to, amount, "USDC")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"simulated": tx.Simulated, "to": to, "amount": amount, "tx_hash": tx.TxHash}, nil

	case rescue.ActionDepositToStripe:
		amount, err := toDecimal(params["amount"], decimal.NewFromInt(20))
		if err != nil {
			return nil, err
		}
		return s.payments.Deposit(ctx, amount, plan.User)

	case rescue.ActionCheckout:
		amount, err := toDecimal(params["amount"], decimal.NewFromInt(20))
		if err != nil {
			return nil, err
		}
		name, _ := params["plan"].(string)
		if name == "" {
			name = "Pro"
		}
		return s.payments.Checkout(ctx, plan.User, name, amount)

	case rescue.ActionTransferAll:
		to := s.resolveAlias(fmt.Sprint(params["to"]))
		s.push(ctx, auditlog.CategoryWarning, "[SIM] Transfer ALL funds to "+to, nil)
		return map[string]interface{}{"simulated": true, "to": to}, nil
	}
	return nil, errors.Wrap(ErrUnknownAction, action)
}

// transferAmount resolves "auto" to the demo wallet's USDC clamped to [1, 5].
func (s *Service) transferAmount(ctx context.Context, v interface{}) (decimal.Decimal, error) {
	if str, ok := v.(string); !ok || str != "auto" {
		return toDecimal(v, decimal.Zero)
	}
	bal, err := s.wallet.Balance(ctx, s.wallet.DemoWallet())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "demo wallet balance")
	}
	lo, hi := decimal.NewFromInt(1), decimal.NewFromInt(5)
	return decimal.Max(decimal.Min(bal.USDC, hi), lo), nil
}

func toDecimal(v interface{}, def decimal.Decimal) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return def, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case decimal.Decimal:
		return x, nil
	case string:
		d, err := decimal.NewFromString(x)
		return d, errors.Wrapf(err, "amount %q", x)
	}
	return decimal.Zero, errors.Errorf("unsupported amount %v", v)
}

// Clear drops every plan and restarts numbering at plan_1.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.plans = nil
	s.next = 1
	s.mu.Unlock()
	s.push(ctx, auditlog.CategoryAction, "All rescue plans cleared", nil)
}
