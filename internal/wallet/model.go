package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	Address  string          `json:"address"`
	ETH      decimal.Decimal `json:"eth"`
	USDC     decimal.Decimal `json:"usdc"`
	USDValue decimal.Decimal `json:"usd_value"`
	Explorer string          `json:"explorer"`
	Source   string          `json:"source"`
}

func (b Balance) EntityID() string { return b.Address }

type Transfer struct {
	TxHash string          `json:"tx_hash"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Token  string          `json:"token"`
	Block  uint64          `json:"block"`
}

type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
	TxUnknown   TxState = "unknown"
)

type TxStatus struct {
	TxHash    string          `json:"tx_hash"`
	Status    TxState         `json:"status"`
	Block     uint64          `json:"block,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Token     string          `json:"token,omitempty"`
	Simulated bool            `json:"simulated,omitempty"`
	Explorer  string          `json:"explorer,omitempty"`
	CheckedAt time.Time       `json:"checked_at"`
}
