package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/market"
)

type fakeSource struct {
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (f *fakeSource) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("no ticker")
	}
	return p, nil
}

func TestPriceIsCached(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(3100)}}
	svc := NewService(src, time.Minute, false, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	q, err := svc.Price(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, market.SourceExchange, q.Source)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(3100)))

	q, err = svc.Price(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, market.SourceCache, q.Source)
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	_, err = svc.Price(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestStaleCacheOnError(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(71000)}}
	svc := NewService(src, time.Second, false, nil)
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.Price(context.Background(), "BTC")
	require.NoError(t, err)

	src.err = errors.New("boom")
	now = now.Add(time.Hour)
	q, err := svc.Price(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "stale", q.Note)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(71000)))
}

func TestMockFallback(t *testing.T) {
	svc := NewService(&fakeSource{err: errors.New("down")}, time.Minute, false, nil)
	q, err := svc.Price(context.Background(), "sol")
	require.NoError(t, err)
	assert.Equal(t, market.SourceMock, q.Source)
	assert.Equal(t, "fallback", q.Note)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(150)))

	_, err = svc.Price(context.Background(), "XYZ")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMockModeAndStablecoin(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(src, time.Minute, true, nil)
	q, err := svc.Price(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, market.SourceMock, q.Source)
	assert.Equal(t, 0, src.calls)

	live := NewService(src, time.Minute, false, nil)
	q, err = live.Price(context.Background(), "USDC")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 0, src.calls)
}

func TestPriceOrMock(t *testing.T) {
	svc := NewService(nil, time.Minute, false, nil)
	assert.True(t, svc.PriceOrMock(context.Background(), "eth").Equal(decimal.NewFromInt(3500)))
	assert.True(t, svc.PriceOrMock(context.Background(), "nope").IsZero())
}
