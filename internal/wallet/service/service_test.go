package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/auditlog"
	"findash/internal/auditlog/repository"
	auditservice "findash/internal/auditlog/service"
	"findash/internal/wallet"
	"findash/pkg/httpx"
)

const (
	demo   = "0x9ba79e76F4d1B06fA48855DC34e3D6E7bb1BED2B"
	judge  = "0x0eaa75FfdadCdb688E1055154818fE1dB0718bab"
	usdc   = "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
	fresh  = "0x00000000000000000000000000000000000000aa"
	txHash = "0xabc0000000000000000000000000000000000000000000000000000000000001"
)

type fixedPrice struct{ eth decimal.Decimal }

func (f fixedPrice) PriceOrMock(context.Context, string) decimal.Decimal { return f.eth }

func newMockService() (*Service, *auditservice.Relay) {
	relay := auditservice.NewRelay(repository.NewMemoryRepo(), 100, nil)
	svc := NewService(NewMockLedger(demo), fixedPrice{decimal.NewFromInt(3500)}, relay,
		Options{DemoWallet: demo, Explorer: "https://sepolia.etherscan.io"}, nil)
	return svc, relay
}

func TestMockBalanceDemoWallet(t *testing.T) {
	svc, _ := newMockService()
	b, err := svc.Balance(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "42", b.USDC.String())
	assert.Equal(t, "0.123", b.ETH.String())
	// 0.123 * 3500 + 42
	assert.Equal(t, "472.5", b.USDValue.String())
	assert.Equal(t, "mock", b.Source)
	assert.Contains(t, b.Explorer, "/address/")
}

func TestZeroBalanceForFreshAddress(t *testing.T) {
	svc, _ := newMockService()
	b, err := svc.Balance(context.Background(), fresh)
	require.NoError(t, err)
	assert.True(t, b.ETH.IsZero())
	assert.True(t, b.USDC.IsZero())
	assert.True(t, b.USDValue.IsZero())
}

func TestBalanceRejectsBadAddress(t *testing.T) {
	svc, _ := newMockService()
	_, err := svc.Balance(context.Background(), "0xnope")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSimulatedTransferLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, relay := newMockService()

	st, err := svc.Transfer(ctx, judge, decimal.NewFromInt(5), "usdc")
	require.NoError(t, err)
	assert.Equal(t, wallet.TxPending, st.Status)
	assert.Len(t, st.TxHash, 66)

	b, _ := svc.Balance(ctx, judge)
	assert.Equal(t, "5", b.USDC.String())

	settled := svc.SettlePending(ctx)
	require.Len(t, settled, 1)
	assert.Equal(t, wallet.TxConfirmed, settled[0].Status)
	assert.Empty(t, svc.SettlePending(ctx))

	transfers, err := svc.Transfers(ctx, judge, 10)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	actions := relay.List(auditlog.Query{Categories: []auditlog.Category{auditlog.CategoryAction}})
	assert.Len(t, actions, 1)
}

func TestTransferInsufficientFunds(t *testing.T) {
	svc, relay := newMockService()
	_, err := svc.Transfer(context.Background(), judge, decimal.NewFromInt(500), "USDC")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Len(t, relay.List(auditlog.Query{Categories: []auditlog.Category{auditlog.CategoryError}}), 1)

	_, err = svc.Transfer(context.Background(), judge, decimal.Zero, "USDC")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// rpcServer answers the handful of methods the ledger uses.
func rpcServer(t *testing.T, results map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Method == "eth_call" {
			var call map[string]string
			assert.NoError(t, json.Unmarshal(req.Params[0], &call))
			assert.True(t, strings.HasPrefix(call["data"], "0x70a08231"))
		}

		res, ok := results[req.Method]
		if !ok {
			json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "error": map[string]interface{}{"code": -32601, "message": "method not found"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": res})
	}))
}

func TestChainLedgerBalances(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{
		"eth_getBalance": "0x1bc16d674ec80000", // 2 ETH
		"eth_call":       "0x0000000000000000000000000000000000000000000000000000000002faf080", // 50 USDC
	})
	defer srv.Close()

	l := NewChainLedger(httpx.New(httpx.Options{Name: "rpc-test"}), srv.URL, usdc)
	eth, usdcBal, err := l.Balances(context.Background(), demo)
	require.NoError(t, err)
	assert.Equal(t, "2", eth.String())
	assert.Equal(t, "50", usdcBal.String())
}

func TestChainLedgerEmptyAddress(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{
		"eth_getBalance": "0x0",
		"eth_call":       "0x",
	})
	defer srv.Close()

	l := NewChainLedger(httpx.New(httpx.Options{Name: "rpc-empty"}), srv.URL, usdc)
	eth, usdcBal, err := l.Balances(context.Background(), fresh)
	require.NoError(t, err)
	assert.True(t, eth.IsZero())
	assert.True(t, usdcBal.IsZero())
}

func TestChainLedgerTransfersAndReceipt(t *testing.T) {
	demoTopic := "0x000000000000000000000000" + strings.ToLower(demo[2:])
	judgeTopic := "0x000000000000000000000000" + strings.ToLower(judge[2:])
	srv := rpcServer(t, map[string]interface{}{
		"eth_blockNumber": "0x10",
		"eth_getLogs": []map[string]interface{}{{
			"transactionHash": txHash,
			"blockNumber":     "0xa",
			"topics":          []string{transferTopic, demoTopic, judgeTopic},
			"data":            "0x4c4b40", // 5 USDC
		}},
		"eth_getTransactionReceipt": map[string]string{"status": "0x1", "blockNumber": "0xa"},
	})
	defer srv.Close()

	l := NewChainLedger(httpx.New(httpx.Options{Name: "rpc-logs"}), srv.URL, usdc)
	transfers, err := l.Transfers(context.Background(), demo, 10)
	require.NoError(t, err)
	// Both filters return the same log; it is reported once.
	require.Len(t, transfers, 1)
	assert.True(t, wallet.SameAddress(demo, transfers[0].From))
	assert.True(t, wallet.SameAddress(judge, transfers[0].To))
	assert.Equal(t, "5", transfers[0].Amount.String())
	assert.Equal(t, uint64(10), transfers[0].Block)

	st, err := l.Receipt(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, wallet.TxConfirmed, st.Status)
}

func TestChainLedgerPendingReceiptAndRPCError(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{"eth_getTransactionReceipt": nil})
	defer srv.Close()

	l := NewChainLedger(httpx.New(httpx.Options{Name: "rpc-pending"}), srv.URL, usdc)
	st, err := l.Receipt(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, wallet.TxPending, st.Status)

	_, _, err = l.Balances(context.Background(), demo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}
