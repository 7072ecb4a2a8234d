package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/alert"
	"findash/internal/subscription"
	subrepo "findash/internal/subscription/repository"
	subsvc "findash/internal/subscription/service"
	"findash/internal/treasury"
	walletsvc "findash/internal/wallet/service"
)

const demo = "0x9ba79e76F4d1B06fA48855DC34e3D6E7bb1BED2B"

type fixedPrices map[string]decimal.Decimal

func (f fixedPrices) PriceOrMock(_ context.Context, sym string) decimal.Decimal { return f[sym] }

type fixedTreasury []treasury.Balance

func (f fixedTreasury) Balances(context.Context) ([]treasury.Balance, error) { return f, nil }

func messages(alerts []alert.Alert) string {
	var b strings.Builder
	for _, a := range alerts {
		b.WriteString(a.Message)
		b.WriteString("\n")
	}
	return b.String()
}

func TestCheckerRaisesOncePerCondition(t *testing.T) {
	ctx := context.Background()
	ledger := walletsvc.NewMockLedger(demo)
	ledger.Set(demo, decimal.RequireFromString("0.001"), decimal.NewFromInt(3))
	w := walletsvc.NewService(ledger, nil, nil, walletsvc.Options{DemoWallet: demo}, nil)
	subs := subsvc.NewService(subrepo.NewMemoryRepo(), nil, nil)
	_, _, err := subs.Apply(ctx, "user1", "sub2", subscription.ActionPause)
	require.NoError(t, err)

	alerts := NewService(0, demo, nil, nil)
	checker := NewChecker(alerts, CheckerDeps{
		Prices:        fixedPrices{"BTC": decimal.NewFromInt(71000)},
		Wallet:        w,
		Subscriptions: subs,
		Treasury:      fixedTreasury{{Currency: "USD", Amount: decimal.NewFromInt(40)}},
	}, nil)

	n := checker.Run(ctx)
	assert.Equal(t, 5, n)
	got := messages(alerts.List(Query{}))
	assert.Contains(t, got, "BTC crossed $70K!")
	assert.Contains(t, got, "Demo wallet ETH critically low")
	assert.Contains(t, got, "Demo wallet USDC low")
	assert.Contains(t, got, "Spotify subscription paused (user1)")
	assert.Contains(t, got, "Circle USD balance low: 40.00")

	assert.Equal(t, 0, checker.Run(ctx))

	// a cleared condition may fire again later
	ledger.Set(demo, decimal.RequireFromString("0.001"), decimal.NewFromInt(50))
	checker.Run(ctx)
	alerts.Clear(ctx)
	ledger.Set(demo, decimal.RequireFromString("0.001"), decimal.NewFromInt(3))
	assert.Equal(t, 1, checker.Run(ctx))
}

func TestCheckerExpiringAndTransactions(t *testing.T) {
	ctx := context.Background()
	ledger := walletsvc.NewMockLedger(demo)
	w := walletsvc.NewService(ledger, nil, nil, walletsvc.Options{DemoWallet: demo}, nil)
	subs := subsvc.NewService(subrepo.NewMemoryRepo(), nil, nil)

	alerts := NewService(0, demo, nil, nil)
	checker := NewChecker(alerts, CheckerDeps{Wallet: w, Subscriptions: subs}, nil)
	// sub1 renews in 10 days; eight days later it is inside the window
	checker.now = func() time.Time { return time.Now().AddDate(0, 0, 8) }

	st, err := w.Transfer(ctx, "0x0eaa75FfdadCdb688E1055154818fE1dB0718bab", decimal.NewFromInt(1), "USDC")
	require.NoError(t, err)

	checker.Run(ctx)
	got := messages(alerts.List(Query{}))
	assert.Contains(t, got, "Netflix subscription expiring soon")
	assert.Contains(t, got, "Tx "+st.TxHash+" confirmed")
}

func TestCheckerScansEveryDemoUser(t *testing.T) {
	ctx := context.Background()
	subs := subsvc.NewService(subrepo.NewMemoryRepo(), nil, nil)
	_, _, err := subs.Apply(ctx, "user3", "sub4", subscription.ActionCancel)
	require.NoError(t, err)

	alerts := NewService(0, demo, nil, nil)
	checker := NewChecker(alerts, CheckerDeps{Subscriptions: subs}, nil)
	assert.Equal(t, 1, checker.Run(ctx))
	assert.Contains(t, messages(alerts.List(Query{})), "ChatGPT Plus subscription cancelled (user3)")

	only := NewChecker(NewService(0, demo, nil, nil), CheckerDeps{Subscriptions: subs, Users: []string{"user1"}}, nil)
	assert.Equal(t, 0, only.Run(ctx))
}

func TestCheckerSchedule(t *testing.T) {
	checker := NewChecker(NewService(0, "", nil, nil), CheckerDeps{}, nil)
	assert.Error(t, checker.Start("not a schedule"))
	require.NoError(t, checker.Start("@every 1h"))
	checker.Stop()
	checker.Stop()
}
