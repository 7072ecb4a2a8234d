// internal/market/service/binance.go
package service

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"findash/internal/metrics"
)

// BinanceSource reads spot prices from the public ticker endpoint.
type BinanceSource struct {
	SpotClient *binance.Client
	Quote      string
}

func NewBinanceSource() *BinanceSource {
	// Public endpoints need no keys.
	return &BinanceSource{SpotClient: binance.NewClient("", ""), Quote: "USDT"}
}

func (b *BinanceSource) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	start := time.Now()
	prices, err := b.SpotClient.NewListPricesService().Symbol(symbol + b.Quote).Do(ctx)
	metrics.UpstreamRequestDuration.WithLabelValues("binance").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("binance", "error").Inc()
		return decimal.Zero, errors.Wrapf(err, "ticker %s%s", symbol, b.Quote)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("binance", "ok").Inc()

	for _, p := range prices {
		if p.Symbol == symbol+b.Quote {
			v, err := decimal.NewFromString(p.Price)
			if err != nil {
				return decimal.Zero, errors.Wrapf(err, "parse price %q", p.Price)
			}
			return v, nil
		}
	}
	return decimal.Zero, errors.Errorf("no ticker for %s%s", symbol, b.Quote)
}
