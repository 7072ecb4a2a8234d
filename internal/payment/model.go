package payment

import "github.com/shopspring/decimal"

// Mapping ties demo plan names to sandbox subscription ids.
type Mapping struct {
	CustomerID    string            `json:"customerId"`
	Subscriptions map[string]string `json:"subscriptions"`
}

type Action string

const (
	ActionCancel Action = "cancel"
	ActionRefund Action = "refund"
)

type Result struct {
	Success        bool            `json:"success"`
	Action         Action          `json:"action"`
	Plan           string          `json:"plan"`
	SubscriptionID string          `json:"subscription_id"`
	Status         string          `json:"status,omitempty"`
	RefundID       string          `json:"refund_id,omitempty"`
	Amount         decimal.Decimal `json:"amount,omitempty"`
	Mode           string          `json:"mode"`
}

// Intent is a one-off deposit into the processor account.
type Intent struct {
	ID     string          `json:"stripe_id"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
	Mode   string          `json:"mode"`
}

type Checkout struct {
	ID   string `json:"session_id"`
	URL  string `json:"url,omitempty"`
	Plan string `json:"plan"`
	User string `json:"user"`
	Mode string `json:"mode"`
}
