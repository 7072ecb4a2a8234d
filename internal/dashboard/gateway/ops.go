package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/agent"
	"findash/internal/alert"
	"findash/internal/auditlog"
	"findash/internal/market"
	"findash/internal/subscription"
	"findash/internal/wallet"
)

func (g *Gateway) ListSubscriptions(ctx context.Context, user string) (subscription.Snapshot, error) {
	var snap subscription.Snapshot
	err := g.Call(ctx, OpSubscriptionsList, Params{Path: map[string]string{"user": user}}, &snap)
	if g.coerced(err) || (err == nil && snap.Subs == nil) {
		return subscription.Snapshot{Subs: subscription.Seed(time.Now()), Balance: subscription.DemoBalance}, nil
	}
	return snap, err
}

// ApplySubscription returns the server snapshot after the action. A
// misshapen body yields an empty snapshot, which callers treat as "nothing
// to reconcile".
func (g *Gateway) ApplySubscription(ctx context.Context, user, subID string, action subscription.Action) (subscription.Snapshot, error) {
	op, ok := map[subscription.Action]Operation{
		subscription.ActionPause:  OpSubscriptionsPause,
		subscription.ActionResume: OpSubscriptionsResume,
		subscription.ActionCancel: OpSubscriptionsCancel,
	}[action]
	if !ok {
		op = Operation("subscriptions." + string(action))
	}
	var snap subscription.Snapshot
	err := g.Call(ctx, op, Params{Path: map[string]string{"user": user, "sub": subID}}, &snap)
	if g.coerced(err) {
		return subscription.Snapshot{}, nil
	}
	return snap, err
}

func (g *Gateway) PauseSubscription(ctx context.Context, user, subID string) (subscription.Snapshot, error) {
	return g.ApplySubscription(ctx, user, subID, subscription.ActionPause)
}

func (g *Gateway) ResumeSubscription(ctx context.Context, user, subID string) (subscription.Snapshot, error) {
	return g.ApplySubscription(ctx, user, subID, subscription.ActionResume)
}

func (g *Gateway) CancelSubscription(ctx context.Context, user, subID string) (subscription.Snapshot, error) {
	return g.ApplySubscription(ctx, user, subID, subscription.ActionCancel)
}

func (g *Gateway) ListAlerts(ctx context.Context, limit int) ([]alert.Alert, error) {
	var out struct {
		Alerts []alert.Alert `json:"alerts"`
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	err := g.Call(ctx, OpAlertsList, Params{Query: q}, &out)
	if g.coerced(err) {
		return []alert.Alert{}, nil
	}
	if out.Alerts == nil {
		out.Alerts = []alert.Alert{}
	}
	return out.Alerts, err
}

func (g *Gateway) ResolveAlert(ctx context.Context, id int64) error {
	return g.Call(ctx, OpAlertsResolve, Params{Path: map[string]string{"id": strconv.FormatInt(id, 10)}}, nil)
}

func (g *Gateway) ListLogs(ctx context.Context, q auditlog.Query) ([]auditlog.Entry, error) {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(q.Categories) > 0 {
		types := make([]string, len(q.Categories))
		for i, c := range q.Categories {
			types[i] = string(c)
		}
		v.Set("types", strings.Join(types, ","))
	}
	if !q.Since.IsZero() {
		v.Set("since", q.Since.Format(time.RFC3339))
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	var out struct {
		Logs []auditlog.Entry `json:"logs"`
	}
	err := g.Call(ctx, OpLogsList, Params{Query: v}, &out)
	if g.coerced(err) {
		return []auditlog.Entry{}, nil
	}
	if out.Logs == nil {
		out.Logs = []auditlog.Entry{}
	}
	return out.Logs, err
}

func (g *Gateway) AppendLog(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) (auditlog.Entry, error) {
	body := map[string]interface{}{"type": category, "message": message, "details": details}
	var e auditlog.Entry
	err := g.Call(ctx, OpLogsAppend, Params{Body: body}, &e)
	if g.coerced(err) {
		return auditlog.Entry{Category: category, Message: message, Timestamp: time.Now(), Details: details}, nil
	}
	return e, err
}

// WalletBalance never invents holdings: a misshapen body reads as zero.
func (g *Gateway) WalletBalance(ctx context.Context, address string) (wallet.Balance, error) {
	b := wallet.Balance{Address: address}
	err := g.Call(ctx, OpWalletBalance, Params{Query: url.Values{"address": {address}}}, &b)
	if g.coerced(err) {
		return zeroBalance(address), nil
	}
	if err != nil {
		return wallet.Balance{}, err
	}
	if b.Address == "" {
		b.Address = address
	}
	return b, nil
}

func zeroBalance(address string) wallet.Balance {
	return wallet.Balance{Address: address, ETH: decimal.Zero, USDC: decimal.Zero, USDValue: decimal.Zero, Source: "mock"}
}

func (g *Gateway) Price(ctx context.Context, symbol string) (market.Quote, error) {
	var q market.Quote
	err := g.Call(ctx, OpMarketPrice, Params{Query: url.Values{"symbol": {symbol}}}, &q)
	if g.coerced(err) || (err == nil && q.Price.IsZero()) {
		p, ok := market.MockPrices[symbol]
		if !ok {
			p = decimal.Zero
		}
		return market.Quote{Symbol: symbol, Price: p, Currency: "USD", Source: market.SourceMock, Note: "fallback", FetchedAt: time.Now()}, nil
	}
	return q, err
}

// Reply is an assistant answer: exactly one of Text and Card is set.
type Reply struct {
	Text          string
	Card          *agent.Card
	SessionID     string
	Mode          agent.Mode
	ExecutedTools []string
}

type askResponse struct {
	Response      json.RawMessage `json:"response"`
	SessionID     string          `json:"session_id"`
	Mode          agent.Mode      `json:"mode"`
	ExecutedTools []string        `json:"executed_tools"`
}

func (g *Gateway) Ask(ctx context.Context, query, user string) (Reply, error) {
	var out askResponse
	err := g.Call(ctx, OpAgentAsk, Params{Body: map[string]string{"query": query, "user_id": user}}, &out)
	if err != nil && !g.coerced(err) {
		return Reply{}, err
	}
	r := Reply{SessionID: out.SessionID, Mode: out.Mode, ExecutedTools: out.ExecutedTools}

	var text string
	var card agent.Card
	switch {
	case json.Unmarshal(out.Response, &text) == nil && text != "":
		r.Text = text
	case json.Unmarshal(out.Response, &card) == nil && card.Title != "":
		r.Card = &card
	case len(out.Response) > 0 && string(out.Response) != "null":
		r.Text = string(out.Response)
	default:
		r.Text = "No response."
	}
	return r, nil
}
