package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"findash/internal/alert"
	"findash/internal/subscription"
	"findash/internal/treasury"
	"findash/internal/wallet"
)

var (
	btcThreshold      = decimal.NewFromInt(70_000)
	ethLow            = decimal.RequireFromString("0.01")
	usdcLow           = decimal.NewFromInt(10)
	treasuryLow       = decimal.NewFromInt(50)
	expiringThreshold = 3 * 24 * time.Hour
)

type PriceOracle interface {
	PriceOrMock(ctx context.Context, symbol string) decimal.Decimal
}

type WalletReader interface {
	DemoWallet() string
	Balance(ctx context.Context, address string) (wallet.Balance, error)
	SettlePending(ctx context.Context) []wallet.TxStatus
}

type SubscriptionReader interface {
	Snapshot(ctx context.Context, userID string) (subscription.Snapshot, error)
}

type TreasuryReader interface {
	Balances(ctx context.Context) ([]treasury.Balance, error)
}

// Checker derives alerts from the state of the other services. A condition
// raises an alert when it first becomes true and again only after it has
// cleared in between.
type Checker struct {
	alerts   *Service
	prices   PriceOracle
	wallet   WalletReader
	subs     SubscriptionReader
	treasury TreasuryReader
	users    []string
	log      logrus.FieldLogger
	now      func() time.Time

	mu     sync.Mutex
	firing map[string]bool
	cron   *cron.Cron
}

// DefaultUsers are the demo accounts scanned when no list is configured.
var DefaultUsers = []string{"user1", "user2", "user3"}

type CheckerDeps struct {
	Prices        PriceOracle
	Wallet        WalletReader
	Subscriptions SubscriptionReader
	Treasury      TreasuryReader
	Users         []string
}

func NewChecker(alerts *Service, deps CheckerDeps, log logrus.FieldLogger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(deps.Users) == 0 {
		deps.Users = DefaultUsers
	}
	return &Checker{
		alerts:   alerts,
		prices:   deps.Prices,
		wallet:   deps.Wallet,
		subs:     deps.Subscriptions,
		treasury: deps.Treasury,
		users:    deps.Users,
		log:      log.WithField("component", "alert-checker"),
		now:      time.Now,
		firing:   make(map[string]bool),
	}
}

type finding struct {
	key string
	a   alert.Alert
}

// Run performs one check pass and returns the number of alerts raised.
func (c *Checker) Run(ctx context.Context) int {
	var found []finding
	found = append(found, c.checkMarket(ctx)...)
	found = append(found, c.checkWallet(ctx)...)
	found = append(found, c.checkSubscriptions(ctx)...)
	found = append(found, c.checkTreasury(ctx)...)

	c.mu.Lock()
	next := make(map[string]bool, len(found))
	var fresh []alert.Alert
	for _, f := range found {
		next[f.key] = true
		if !c.firing[f.key] {
			fresh = append(fresh, f.a)
		}
	}
	c.firing = next
	c.mu.Unlock()

	// settled transactions are one-shot events
	fresh = append(fresh, c.checkTransactions(ctx)...)

	n := 0
	for _, a := range fresh {
		if _, created := c.alerts.Add(ctx, a); created {
			n++
		}
	}
	if n > 0 {
		c.log.WithField("count", n).Info("alerts raised")
	}
	return n
}

func (c *Checker) checkMarket(ctx context.Context) []finding {
	if c.prices == nil {
		return nil
	}
	btc := c.prices.PriceOrMock(ctx, "BTC")
	if btc.GreaterThan(btcThreshold) {
		return []finding{{key: "market:btc70k", a: alert.Alert{
			Level: alert.LevelInfo, Category: alert.CategoryMarket,
			Message: "BTC crossed $70K!",
			Context: map[string]interface{}{"symbol": "BTC", "price": btc.StringFixed(2)},
		}}}
	}
	return nil
}

func (c *Checker) checkWallet(ctx context.Context) []finding {
	if c.wallet == nil {
		return nil
	}
	addr := c.wallet.DemoWallet()
	bal, err := c.wallet.Balance(ctx, addr)
	if err != nil {
		c.log.WithError(err).Warn("demo wallet check failed")
		return []finding{{key: "wallet:error", a: alert.Alert{
			Level: alert.LevelError, Category: alert.CategoryWallet,
			Message: "Error checking demo wallet",
			Context: map[string]interface{}{"error": err.Error()},
		}}}
	}
	var out []finding
	if bal.ETH.LessThan(ethLow) {
		out = append(out, finding{key: "wallet:eth", a: alert.Alert{
			Level: alert.LevelWarning, Category: alert.CategoryWallet,
			Message: "Demo wallet ETH critically low",
			Context: map[string]interface{}{"wallet": addr, "eth": bal.ETH.String()},
		}})
	}
	if bal.USDC.LessThan(usdcLow) {
		out = append(out, finding{key: "wallet:usdc", a: alert.Alert{
			Level: alert.LevelWarning, Category: alert.CategoryWallet,
			Message: "Demo wallet USDC low",
			Context: map[string]interface{}{"wallet": addr, "usdc": bal.USDC.String()},
		}})
	}
	return out
}

func (c *Checker) checkSubscriptions(ctx context.Context) []finding {
	if c.subs == nil {
		return nil
	}
	now := c.now()
	var out []finding
	for _, user := range c.users {
		snap, err := c.subs.Snapshot(ctx, user)
		if err != nil {
			c.log.WithError(err).WithField("user_id", user).Warn("subscription check failed")
			continue
		}
		for _, sub := range snap.Subs {
			key := "sub:" + user + ":" + sub.ID + ":"
			ctxMap := map[string]interface{}{"user": user, "subscription_id": sub.ID, "plan": sub.Plan}
			switch sub.Status {
			case subscription.StatusCanceled:
				out = append(out, finding{key: key + "canceled", a: alert.Alert{
					Level: alert.LevelError, Category: alert.CategorySubscription,
					Message: fmt.Sprintf("%s subscription cancelled (%s)", sub.Plan, user),
					Context: ctxMap,
				}})
			case subscription.StatusPaused:
				out = append(out, finding{key: key + "paused", a: alert.Alert{
					Level: alert.LevelWarning, Category: alert.CategorySubscription,
					Message: fmt.Sprintf("%s subscription paused (%s)", sub.Plan, user),
					Context: ctxMap,
				}})
			default:
				if sub.RenewsOn != nil && sub.RenewsOn.Sub(now) < expiringThreshold {
					ctxMap["renews_on"] = sub.RenewsOn.Format("2006-01-02")
					out = append(out, finding{key: key + "expiring", a: alert.Alert{
						Level: alert.LevelWarning, Category: alert.CategorySubscription,
						Message: fmt.Sprintf("%s subscription expiring soon (%s)", sub.Plan, sub.RenewsOn.Format("2006-01-02")),
						Context: ctxMap,
					}})
				}
			}
		}
	}
	return out
}

func (c *Checker) checkTreasury(ctx context.Context) []finding {
	if c.treasury == nil {
		return nil
	}
	balances, err := c.treasury.Balances(ctx)
	if err != nil {
		c.log.WithError(err).Warn("treasury check failed")
		return []finding{{key: "treasury:error", a: alert.Alert{
			Level: alert.LevelError, Category: alert.CategoryTreasury,
			Message: "Error checking Circle balances",
		}}}
	}
	var out []finding
	for _, b := range balances {
		if (b.Currency == "USD" || b.Currency == "USDC") && b.Amount.LessThan(treasuryLow) {
			out = append(out, finding{key: "treasury:" + b.Currency, a: alert.Alert{
				Level: alert.LevelWarning, Category: alert.CategoryTreasury,
				Message: fmt.Sprintf("Circle %s balance low: %s", b.Currency, b.Amount.StringFixed(2)),
				Context: map[string]interface{}{"currency": b.Currency, "amount": b.Amount.String()},
			}})
		}
	}
	return out
}

func (c *Checker) checkTransactions(ctx context.Context) []alert.Alert {
	if c.wallet == nil {
		return nil
	}
	var out []alert.Alert
	for _, st := range c.wallet.SettlePending(ctx) {
		level := alert.LevelInfo
		if st.Status == wallet.TxFailed {
			level = alert.LevelError
		}
		out = append(out, alert.Alert{
			Level: level, Category: alert.CategoryCrypto,
			Message: fmt.Sprintf("Tx %s %s in block %d", st.TxHash, st.Status, st.Block),
			Context: map[string]interface{}{"tx_hash": st.TxHash, "explorer": st.Explorer},
		})
	}
	return out
}

// Start schedules Run on a cron spec such as "@every 30s".
func (c *Checker) Start(spec string) error {
	cr := cron.New()
	if _, err := cr.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		c.Run(ctx)
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.cron = cr
	c.mu.Unlock()
	cr.Start()
	c.log.WithField("schedule", spec).Info("alert checker started")
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (c *Checker) Stop() {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cr != nil {
		<-cr.Stop().Done()
	}
}
