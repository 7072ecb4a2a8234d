package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"findash/internal/agent"
	"findash/internal/alert"
	alertsvc "findash/internal/alert/service"
	"findash/internal/market"
	"findash/internal/rescue"
	"findash/internal/subscription"
	"findash/internal/wallet"
)

type Prices interface {
	Price(ctx context.Context, symbol string) (market.Quote, error)
}

type Wallet interface {
	DemoWallet() string
	Balance(ctx context.Context, address string) (wallet.Balance, error)
	Transfers(ctx context.Context, address string, limit int) ([]wallet.Transfer, error)
	CheckTx(ctx context.Context, txHash string) (wallet.TxStatus, error)
}

type Subscriptions interface {
	Snapshot(ctx context.Context, userID string) (subscription.Snapshot, error)
}

type Alerts interface {
	List(q alertsvc.Query) []alert.Alert
	ResolveMatching(ctx context.Context, prefix string) int
}

type Rescue interface {
	Generate(ctx context.Context, event, user string) (rescue.Plan, error)
}

// Tools are the local services the fast dispatcher answers from. Any may be nil.
type Tools struct {
	Prices        Prices
	Wallet        Wallet
	Subscriptions Subscriptions
	Alerts        Alerts
	Rescue        Rescue
	JudgeWallet   string
}

type dispatch struct {
	tool string
	text string
	data interface{}
}

// fast answers common questions from local state. ok is false when no
// keyword matched or the matching tool is unavailable.
func (t Tools) fast(ctx context.Context, query, user string) (d dispatch, ok bool, err error) {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "price") && strings.Contains(q, "eth"):
		if t.Prices == nil {
			return d, false, nil
		}
		quote, err := t.Prices.Price(ctx, "ETH")
		if err != nil {
			return d, true, err
		}
		return dispatch{tool: "get_crypto_price", text: fmt.Sprintf("ETH is $%s (%s).", quote.Price.StringFixed(2), quote.Source), data: quote}, true, nil

	case strings.Contains(q, "wallet") || strings.Contains(q, "balance"):
		if t.Wallet == nil {
			return d, false, nil
		}
		demo, err := t.Wallet.Balance(ctx, t.Wallet.DemoWallet())
		if err != nil {
			return d, true, err
		}
		data := map[string]interface{}{"demo_wallet": demo}
		text := fmt.Sprintf("Demo wallet holds %s ETH and %s USDC ($%s).", demo.ETH.String(), demo.USDC.String(), demo.USDValue.StringFixed(2))
		if t.JudgeWallet != "" {
			if judge, err := t.Wallet.Balance(ctx, t.JudgeWallet); err == nil {
				data["judge_wallet"] = judge
			}
		}
		return dispatch{tool: "get_wallet_balance", text: text, data: data}, true, nil

	case strings.Contains(q, "subscription") || strings.Contains(q, "plan"):
		if t.Subscriptions == nil {
			return d, false, nil
		}
		snap, err := t.Subscriptions.Snapshot(ctx, user)
		if err != nil {
			return d, true, err
		}
		active, monthly := 0, decimal.Zero
		for _, s := range snap.Subs {
			if s.Status == subscription.StatusActive || s.Status == subscription.StatusTrialing {
				active++
				monthly = monthly.Add(s.Price)
			}
		}
		text := fmt.Sprintf("%d of %d subscriptions active, $%s per month.", active, len(snap.Subs), monthly.StringFixed(2))
		return dispatch{tool: "get_subscriptions", text: text, data: snap}, true, nil

	case strings.Contains(q, "alert") || strings.Contains(q, "risk"):
		if t.Alerts == nil {
			return d, false, nil
		}
		list := t.Alerts.List(alertsvc.Query{Limit: 10})
		text := "No active alerts."
		if len(list) > 0 {
			text = fmt.Sprintf("%d active alerts. Latest: %s", len(list), list[0].Message)
		}
		return dispatch{tool: "check_alerts", text: text, data: map[string]interface{}{"alerts": list}}, true, nil

	case strings.Contains(q, "transaction") || strings.Contains(q, "tx"):
		if t.Wallet == nil {
			return d, false, nil
		}
		recent, err := t.Wallet.Transfers(ctx, t.Wallet.DemoWallet(), 1)
		if err != nil {
			return d, true, err
		}
		if len(recent) == 0 {
			return dispatch{tool: "check_transaction", text: "No recent transactions on the demo wallet."}, true, nil
		}
		st, err := t.Wallet.CheckTx(ctx, recent[0].TxHash)
		if err != nil {
			return d, true, err
		}
		return dispatch{tool: "check_transaction", text: fmt.Sprintf("Latest transaction %s is %s.", st.TxHash, st.Status), data: st}, true, nil

	case strings.Contains(q, "rescue") || strings.Contains(q, "save"):
		if t.Rescue == nil {
			return d, false, nil
		}
		plan, err := t.Rescue.Generate(ctx, "wallet compromised", "demo")
		if err != nil {
			return d, true, err
		}
		return dispatch{tool: "generate_rescue_plan", text: fmt.Sprintf("Rescue plan %s drafted: %s. Approve it to run.", plan.ID, plan.Description), data: plan}, true, nil
	}
	return d, false, nil
}

// demoCard is the canned recommendation for queries nothing else answered,
// or that match one of the showcase keywords.
func demoCard(query string) (*agent.Card, bool) {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "usdc") || (strings.Contains(q, "wallet") && strings.Contains(q, "low")):
		return agent.NewCard("alert", "Demo Wallet USDC Low",
			"Your demo wallet balance is under 10 USDC. Suggest topping up to avoid failed payments.",
			alert.Recommendation{Label: "Top up 50 USDC from Treasury", Tool: "mintUSDC", Args: map[string]interface{}{"amount": 50}},
			alert.Recommendation{Label: "Pause Spotify", Tool: "pauseSubscription", Args: map[string]interface{}{"id": "sub2"}},
		), true
	case strings.Contains(q, "netflix"):
		return agent.NewCard("subscription", "Netflix not used recently",
			"Detected inactivity. Canceling or pausing could save money.",
			alert.Recommendation{Label: "Pause Netflix", Tool: "pauseSubscription", Args: map[string]interface{}{"id": "sub1"}},
			alert.Recommendation{Label: "Cancel Netflix", Tool: "cancelSubscription", Args: map[string]interface{}{"id": "sub1"}},
		), true
	}
	return agent.NewCard("info", "Demo Recommendation", "Demo fallback for query: "+query,
		alert.Recommendation{Label: "Skip", Tool: "noop"},
	), false
}
