// Package dashboard wires the headless dashboard: one gateway, a store per
// panel, the shared activity relay kept in step with the backend log, the
// chat console and the pollers.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"findash/internal/alert"
	"findash/internal/auditlog"
	auditsvc "findash/internal/auditlog/service"
	"findash/internal/dashboard/console"
	"findash/internal/dashboard/gateway"
	"findash/internal/dashboard/store"
	"findash/internal/market"
	"findash/internal/subscription"
	"findash/internal/wallet"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrRunning       = errors.New("dashboard already started")
)

type Options struct {
	User         string
	Wallets      []string
	Symbols      []string
	AlertPoll    string
	BalancePoll  string
	LogPoll      string
	ConfirmDelay time.Duration
	Rollback     bool
	MaxLogs      int
	Logger       logrus.FieldLogger
}

type Dashboard struct {
	Relay   *auditsvc.Relay
	Subs    *store.Store[subscription.Subscription]
	Alerts  *store.Alerts
	Wallets *store.Store[wallet.Balance]
	Console *console.Console

	gw   *gateway.Gateway
	feed *feed
	opts Options
	log  logrus.FieldLogger

	mu      sync.RWMutex
	balance decimal.Decimal
	prices  map[string]market.Quote

	runMu  sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(gw *gateway.Gateway, opts Options) *Dashboard {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.User == "" {
		opts.User = "user1"
	}
	if len(opts.Symbols) == 0 {
		opts.Symbols = []string{"ETH", "BTC"}
	}
	if opts.AlertPoll == "" {
		opts.AlertPoll = "@every 15s"
	}
	if opts.BalancePoll == "" {
		opts.BalancePoll = "@every 30s"
	}
	if opts.LogPoll == "" {
		opts.LogPoll = "@every 15s"
	}

	d := &Dashboard{
		gw:     gw,
		opts:   opts,
		log:    opts.Logger.WithField("component", "dashboard"),
		prices: make(map[string]market.Quote),
		Relay:  auditsvc.NewRelay(nil, opts.MaxLogs, opts.Logger),
	}
	d.feed = newFeed(d.Relay, gw, d.log)

	storeOpts := []store.Option{store.WithLogger(opts.Logger)}
	if opts.Rollback {
		storeOpts = append(storeOpts, store.WithRollback())
	}
	d.Subs = store.New[subscription.Subscription]("subscriptions", nil, d.feed, storeOpts...)
	d.Alerts = store.NewAlerts(func(ctx context.Context) ([]alert.Alert, error) {
		return gw.ListAlerts(ctx, 200)
	}, gw.ResolveAlert, d.feed, storeOpts...)
	d.Wallets = store.New[wallet.Balance]("wallets", d.fetchWallets, d.feed, storeOpts...)
	d.Console = console.New(gw, d, d.feed, console.Options{
		User:         opts.User,
		ConfirmDelay: opts.ConfirmDelay,
		Logger:       opts.Logger,
	})
	return d
}

func (d *Dashboard) fetchWallets(ctx context.Context) ([]wallet.Balance, error) {
	out := make([]wallet.Balance, 0, len(d.opts.Wallets))
	for _, addr := range d.opts.Wallets {
		b, err := d.gw.WalletBalance(ctx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// RefreshSubscriptions reloads the subscription panel. The balance moves
// only when the item refresh was not stale.
func (d *Dashboard) RefreshSubscriptions(ctx context.Context) error {
	seen := d.Subs.Version()
	snap, err := d.gw.ListSubscriptions(ctx, d.opts.User)
	if err != nil {
		d.log.WithError(err).Warn("subscription refresh failed")
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d.Subs.Replace(seen, snap.Subs) {
		d.setBalance(snap.Balance)
	}
	return nil
}

func (d *Dashboard) RefreshAlerts(ctx context.Context) error {
	_, err := d.Alerts.Refresh(ctx)
	return err
}

// RefreshBalances reloads wallet balances and the price tiles.
func (d *Dashboard) RefreshBalances(ctx context.Context) error {
	_, err := d.Wallets.Refresh(ctx)
	for _, sym := range d.opts.Symbols {
		q, perr := d.gw.Price(ctx, sym)
		if perr != nil {
			if err == nil {
				err = perr
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.mu.Lock()
		d.prices[sym] = q
		d.mu.Unlock()
	}
	return err
}

// RefreshLogs pulls backend log entries the relay has not seen yet.
func (d *Dashboard) RefreshLogs(ctx context.Context) error {
	n, err := d.feed.merge(ctx)
	if err != nil {
		d.log.WithError(err).Warn("log refresh failed")
		return err
	}
	if n > 0 {
		d.log.WithField("entries", n).Debug("merged backend log entries")
	}
	return nil
}

// Refresh loads every panel once. All panels are attempted; the first
// error is returned.
func (d *Dashboard) Refresh(ctx context.Context) error {
	var first error
	for _, fn := range []func(context.Context) error{d.RefreshSubscriptions, d.RefreshAlerts, d.RefreshBalances, d.RefreshLogs} {
		if err := fn(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (d *Dashboard) Balance() decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.balance
}

func (d *Dashboard) setBalance(b decimal.Decimal) {
	d.mu.Lock()
	d.balance = b
	d.mu.Unlock()
}

func (d *Dashboard) Prices() map[string]market.Quote {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]market.Quote, len(d.prices))
	for k, v := range d.prices {
		out[k] = v
	}
	return out
}

// MutateSubscription applies action optimistically. A cancellation takes the
// plan price off the displayed balance right away and gives it back only if
// the store rolls the status back; a server snapshot, when returned, replaces
// both.
func (d *Dashboard) MutateSubscription(ctx context.Context, subID string, action subscription.Action) (bool, error) {
	intent := store.SubscriptionIntent(action, func(ctx context.Context) ([]subscription.Subscription, error) {
		snap, err := d.gw.ApplySubscription(ctx, d.opts.User, subID, action)
		if err != nil {
			return nil, err
		}
		if len(snap.Subs) == 0 {
			return nil, nil
		}
		d.setBalance(snap.Balance)
		return snap.Subs, nil
	})
	apply := intent.Apply
	intent.Apply = func(s subscription.Subscription) (subscription.Subscription, bool) {
		next, ok := apply(s)
		if ok && next.Status == subscription.StatusCanceled {
			d.addBalance(s.Price.Neg())
		}
		return next, ok
	}
	intent.Undo = func(prev, optimistic subscription.Subscription) {
		if optimistic.Status == subscription.StatusCanceled && prev.Status != subscription.StatusCanceled {
			d.addBalance(prev.Price)
		}
	}
	return d.Subs.Mutate(ctx, subID, intent)
}

func (d *Dashboard) addBalance(delta decimal.Decimal) {
	d.mu.Lock()
	d.balance = d.balance.Add(delta)
	d.mu.Unlock()
}

// RunTool executes a console card action.
func (d *Dashboard) RunTool(ctx context.Context, tool string, args map[string]interface{}) error {
	var action subscription.Action
	switch tool {
	case "noop":
		return nil
	case "pauseSubscription":
		action = subscription.ActionPause
	case "resumeSubscription":
		action = subscription.ActionResume
	case "cancelSubscription":
		action = subscription.ActionCancel
	default:
		return errors.Wrap(console.ErrUnsupportedTool, tool)
	}
	id, _ := args["id"].(string)
	if id == "" {
		return errors.Errorf("%s: missing subscription id", tool)
	}
	_, err := d.MutateSubscription(ctx, id, action)
	return err
}

type legacyAction struct {
	phrase string
	action subscription.Action
	plan   string
}

// Buttons of the single-page variant. A label runs the first action whose
// phrase it contains.
var legacyActions = []legacyAction{
	{"Cancel Netflix", subscription.ActionCancel, "Netflix"},
	{"Pause Spotify", subscription.ActionPause, "Spotify"},
	{"Cancel Apple Music", subscription.ActionCancel, "Apple Music"},
	{"Cancel ChatGPT Plus", subscription.ActionCancel, "ChatGPT Plus"},
}

func matchLegacy(label string) (legacyAction, bool) {
	for _, la := range legacyActions {
		if strings.Contains(label, la.phrase) {
			return la, true
		}
	}
	return legacyAction{}, false
}

// ExecuteAction runs one of the legacy quick-action buttons: mutate the
// subscription, resolve alerts that mention the plan, and log one action
// entry.
func (d *Dashboard) ExecuteAction(ctx context.Context, label string) error {
	la, ok := matchLegacy(label)
	if !ok {
		return errors.Wrap(ErrUnknownAction, label)
	}
	sub, ok := d.findPlan(la.plan)
	if !ok {
		return errors.Wrapf(store.ErrNotFound, "plan %s", la.plan)
	}

	changed, err := d.MutateSubscription(ctx, sub.ID, la.action)
	if err != nil {
		return err
	}
	if !changed {
		d.feed.Push(ctx, auditlog.CategoryInfo, fmt.Sprintf("%s is already %s.", la.plan, sub.Status), nil)
		return nil
	}
	d.Alerts.ResolveMentioning(ctx, la.plan)

	msg := fmt.Sprintf("%s %s subscription.", la.action.Past(), la.plan)
	if la.action == subscription.ActionCancel {
		msg = fmt.Sprintf("%s %s (refunded $%s).", la.action.Past(), la.plan, sub.Price.StringFixed(2))
	}
	d.feed.Push(ctx, auditlog.CategoryAction, msg, map[string]interface{}{"subscription": sub.ID, "label": label})
	return nil
}

func (d *Dashboard) findPlan(plan string) (subscription.Subscription, bool) {
	for _, s := range d.Subs.Snapshot().Items {
		if strings.EqualFold(s.Plan, plan) {
			return s, true
		}
	}
	return subscription.Subscription{}, false
}

type KPIs struct {
	Treasury            decimal.Decimal `json:"treasury"`
	ActiveSubscriptions int             `json:"active_subscriptions"`
	Alerts              int             `json:"alerts"`
	Actions             int             `json:"actions"`
}

// KPIs are the header tiles. Treasury is the demo figure of 100 per
// subscription on file.
func (d *Dashboard) KPIs() KPIs {
	subs := d.Subs.Snapshot().Items
	k := KPIs{
		Treasury: decimal.NewFromInt(int64(len(subs) * 100)),
		Alerts:   len(d.Alerts.Snapshot().Items),
		Actions:  len(d.Relay.List(auditlog.Query{Categories: []auditlog.Category{auditlog.CategoryAction}})),
	}
	for _, s := range subs {
		if s.Status == subscription.StatusActive || s.Status == subscription.StatusTrialing {
			k.ActiveSubscriptions++
		}
	}
	return k
}

// Start schedules the pollers. Results of fetches still running when Stop
// is called are dropped.
func (d *Dashboard) Start() error {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cron != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New()
	if _, err := c.AddFunc(d.opts.AlertPoll, func() { d.poll(ctx, "alerts", d.RefreshAlerts) }); err != nil {
		cancel()
		return errors.Wrap(err, "alert poll schedule")
	}
	if _, err := c.AddFunc(d.opts.BalancePoll, func() { d.poll(ctx, "balances", d.RefreshBalances) }); err != nil {
		cancel()
		return errors.Wrap(err, "balance poll schedule")
	}
	if _, err := c.AddFunc(d.opts.LogPoll, func() { d.poll(ctx, "logs", d.RefreshLogs) }); err != nil {
		cancel()
		return errors.Wrap(err, "log poll schedule")
	}
	c.Start()
	d.cron, d.cancel = c, cancel
	d.log.WithFields(logrus.Fields{"alerts": d.opts.AlertPoll, "balances": d.opts.BalancePoll, "logs": d.opts.LogPoll}).Info("pollers started")
	return nil
}

func (d *Dashboard) poll(ctx context.Context, name string, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		d.log.WithError(err).WithField("poller", name).Warn("poll failed")
	}
}

// Stop clears the pollers and the console's pending confirmations.
func (d *Dashboard) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cron == nil {
		return
	}
	d.cancel()
	<-d.cron.Stop().Done()
	d.cron, d.cancel = nil, nil
	d.Console.Close()
}
