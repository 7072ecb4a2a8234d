package treasury

import "github.com/shopspring/decimal"

type Mode string

const (
	ModeAPI  Mode = "api"
	ModeMock Mode = "mock"
)

type Balance struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type Operation string

const (
	OpMint   Operation = "mint"
	OpRedeem Operation = "redeem"
)

// Result describes a submitted mint or redeem.
type Result struct {
	Status   string          `json:"status"`
	Action   Operation       `json:"action"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Address  string          `json:"address"`
	TxID     string          `json:"circle_tx_id,omitempty"`
	Balance  *Balance        `json:"balance,omitempty"`
	Mode     Mode            `json:"mode"`
	Note     string          `json:"note,omitempty"`
}
