package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceExchange Source = "binance"
	SourceCache    Source = "cache"
	SourceMock     Source = "mock"
)

// Quote is a USD spot price.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Source    Source          `json:"source"`
	Note      string          `json:"note,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// MockPrices is the fallback table used when the exchange is unreachable or disabled.
var MockPrices = map[string]decimal.Decimal{
	"BTC":  decimal.NewFromInt(67000),
	"ETH":  decimal.NewFromInt(3500),
	"SOL":  decimal.NewFromInt(150),
	"DOGE": decimal.RequireFromString("0.2"),
	"USDC": decimal.NewFromInt(1),
}
