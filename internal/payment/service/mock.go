package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockGateway answers deterministically so the demo works without a key.
type MockGateway struct {
	mu       sync.Mutex
	canceled map[string]bool
	// Amounts maps subscription ids to the refundable amount.
	Amounts map[string]decimal.Decimal
}

func NewMockGateway() *MockGateway {
	return &MockGateway{canceled: make(map[string]bool), Amounts: make(map[string]decimal.Decimal)}
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CancelSubscription(ctx context.Context, subID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled[subID] = true
	return "canceled", nil
}

func (m *MockGateway) RefundLatest(ctx context.Context, subID string) (string, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return "re_mock_" + subID, m.Amounts[subID], nil
}

func (m *MockGateway) Canceled(subID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled[subID]
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, description string) (string, error) {
	return "pi_mock_" + uuid.NewString()[:8], nil
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, plan string, amount decimal.Decimal, customer string) (string, string, error) {
	id := "cs_mock_" + uuid.NewString()[:8]
	return id, "https://checkout.example.com/" + id, nil
}
