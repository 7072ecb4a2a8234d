package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/auditlog"
	"findash/internal/subscription"
	"findash/pkg/httpx"
)

func newGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(httpx.New(httpx.Options{Name: t.Name()}), srv.URL+"/api", nil)
}

func TestHTTPErrorIsTypedAndNotRetried(t *testing.T) {
	var hits int32
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := g.ListAlerts(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, KindHTTP, KindOf(err))
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusInternalServerError, ge.Status)
	assert.Equal(t, OpAlertsList, ge.Op)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := New(httpx.New(httpx.Options{Name: t.Name()}), url, nil)
	_, err := g.ListSubscriptions(context.Background(), "user1")
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestBusinessErrors(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	err := g.Call(context.Background(), Operation("subscriptions.refund"), Params{}, nil)
	assert.Equal(t, KindBusiness, KindOf(err))

	err = g.Call(context.Background(), OpSubscriptionsPause, Params{Path: map[string]string{"user": "u"}}, nil)
	assert.Equal(t, KindBusiness, KindOf(err))
}

func TestMisshapenBodiesAreCoerced(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})
	ctx := context.Background()

	snap, err := g.ListSubscriptions(ctx, "user1")
	require.NoError(t, err)
	assert.Len(t, snap.Subs, len(subscription.Catalogue))
	assert.True(t, snap.Balance.Equal(subscription.DemoBalance))

	alerts, err := g.ListAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	b, err := g.WalletBalance(ctx, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.True(t, b.ETH.IsZero())
	assert.True(t, b.USDC.IsZero())
	assert.True(t, b.USDValue.IsZero())

	q, err := g.Price(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "3500", q.Price.String())

	reply, err := g.Ask(ctx, "hi", "user1")
	require.NoError(t, err)
	assert.Equal(t, "No response.", reply.Text)
}

func TestRequestShapes(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /api/subscriptions/user1/cancel/sub4":
			w.Write([]byte(`{"subs":[{"id":"sub4","plan":"ChatGPT Plus","status":"canceled","price":"20"}],"balance":"56.43","changed":true}`))
		case "GET /api/crypto/wallet/balance":
			assert.Equal(t, "0xabc", r.URL.Query().Get("address"))
			w.Write([]byte(`{"address":"0xabc","eth":"0","usdc":"0","usd_value":"0","source":"chain"}`))
		case "GET /api/logs":
			assert.Equal(t, "action,error", r.URL.Query().Get("types"))
			w.Write([]byte(`{"logs":[{"id":1,"type":"action","message":"m"}],"count":1}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	snap, err := g.CancelSubscription(ctx, "user1", "sub4")
	require.NoError(t, err)
	require.Len(t, snap.Subs, 1)
	assert.Equal(t, subscription.StatusCanceled, snap.Subs[0].Status)
	assert.Equal(t, "56.43", snap.Balance.String())

	b, err := g.WalletBalance(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "chain", b.Source)
	assert.True(t, b.USDC.IsZero())

	logs, err := g.ListLogs(ctx, logsQuery())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "m", logs[0].Message)

	err = g.ResolveAlert(ctx, 7)
	assert.Equal(t, KindHTTP, KindOf(err))
}

func TestAskDecodesTextAndCard(t *testing.T) {
	body := `{"response":"ETH is $3500.00 (mock).","session_id":"abcd1234","mode":"mock","executed_tools":["fast-dispatcher"]}`
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	reply, err := g.Ask(context.Background(), "eth price", "user1")
	require.NoError(t, err)
	assert.Equal(t, "ETH is $3500.00 (mock).", reply.Text)
	assert.Nil(t, reply.Card)
	assert.Equal(t, "abcd1234", reply.SessionID)

	body = `{"response":{"type":"card","variant":"subscription","title":"Netflix not used recently","description":"d","actions":[{"label":"Pause Netflix","tool":"pauseSubscription","args":{"id":"sub1"}}]},"mode":"mock"}`
	reply, err = g.Ask(context.Background(), "netflix", "user1")
	require.NoError(t, err)
	require.NotNil(t, reply.Card)
	assert.Equal(t, "pauseSubscription", reply.Card.Actions[0].Tool)
	assert.Empty(t, reply.Text)
}

func logsQuery() auditlog.Query {
	return auditlog.Query{Categories: []auditlog.Category{auditlog.CategoryAction, auditlog.CategoryError}}
}
