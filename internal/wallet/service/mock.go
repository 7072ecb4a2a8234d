package service

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"findash/internal/wallet"
)

type holding struct {
	eth  decimal.Decimal
	usdc decimal.Decimal
}

// MockLedger is an in-memory chain used when no RPC endpoint is configured.
// Unknown addresses hold nothing.
type MockLedger struct {
	mu        sync.RWMutex
	holdings  map[string]holding
	transfers []wallet.Transfer
	block     uint64
}

func NewMockLedger(demoWallet string) *MockLedger {
	m := &MockLedger{holdings: make(map[string]holding), block: 7_000_000}
	if demoWallet != "" {
		m.holdings[strings.ToLower(demoWallet)] = holding{
			eth:  decimal.RequireFromString("0.123"),
			usdc: decimal.NewFromInt(42),
		}
	}
	return m
}

func (m *MockLedger) Name() string { return "mock" }

func (m *MockLedger) Balances(_ context.Context, address string) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.holdings[strings.ToLower(address)]
	return h.eth, h.usdc, nil
}

func (m *MockLedger) Transfers(_ context.Context, address string, limit int) ([]wallet.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []wallet.Transfer
	for i := len(m.transfers) - 1; i >= 0; i-- {
		t := m.transfers[i]
		if wallet.SameAddress(t.From, address) || wallet.SameAddress(t.To, address) {
			out = append(out, t)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockLedger) Receipt(_ context.Context, txHash string) (wallet.TxStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transfers {
		if t.TxHash == txHash {
			return wallet.TxStatus{TxHash: txHash, Status: wallet.TxConfirmed, Block: t.Block, From: t.From, To: t.To, Amount: t.Amount, Token: t.Token}, nil
		}
	}
	return wallet.TxStatus{TxHash: txHash, Status: wallet.TxUnknown}, nil
}

// Apply books a simulated transfer. Insufficient funds are checked by the caller.
func (m *MockLedger) Apply(t wallet.Transfer) wallet.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.block++
	t.Block = m.block

	from := m.holdings[strings.ToLower(t.From)]
	to := m.holdings[strings.ToLower(t.To)]
	if strings.EqualFold(t.Token, "ETH") {
		from.eth = from.eth.Sub(t.Amount)
		to.eth = to.eth.Add(t.Amount)
	} else {
		from.usdc = from.usdc.Sub(t.Amount)
		to.usdc = to.usdc.Add(t.Amount)
	}
	m.holdings[strings.ToLower(t.From)] = from
	m.holdings[strings.ToLower(t.To)] = to
	m.transfers = append(m.transfers, t)
	return t
}

// Set overrides an address's holdings, e.g. to stage a low-balance scenario.
func (m *MockLedger) Set(address string, eth, usdc decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[strings.ToLower(address)] = holding{eth: eth, usdc: usdc}
}
