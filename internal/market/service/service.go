package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"findash/internal/market"
)

var ErrUnknownSymbol = errors.New("unknown symbol")

type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type cached struct {
	quote market.Quote
	at    time.Time
}

// Service caches quotes for ttl. On upstream failure it serves the last known
// quote, then the mock table.
type Service struct {
	source PriceSource
	ttl    time.Duration
	mock   bool
	log    logrus.FieldLogger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

func NewService(source PriceSource, ttl time.Duration, mock bool, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		source: source,
		ttl:    ttl,
		mock:   mock || source == nil,
		log:    log.WithField("component", "market"),
		now:    time.Now,
		cache:  make(map[string]cached),
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *Service) Price(ctx context.Context, symbol string) (market.Quote, error) {
	sym := normalize(symbol)
	if sym == "" {
		return market.Quote{}, ErrUnknownSymbol
	}

	// Stablecoin is pegged; no lookup.
	if sym == "USDC" || s.mock {
		return s.mockQuote(sym, "")
	}

	now := s.now()
	s.mu.Lock()
	c, ok := s.cache[sym]
	s.mu.Unlock()
	if ok && now.Sub(c.at) < s.ttl {
		q := c.quote
		q.Source = market.SourceCache
		return q, nil
	}

	price, err := s.source.Price(ctx, sym)
	if err != nil {
		s.log.WithError(err).WithField("symbol", sym).Warn("price lookup failed")
		if ok {
			q := c.quote
			q.Source = market.SourceCache
			q.Note = "stale"
			return q, nil
		}
		return s.mockQuote(sym, "fallback")
	}

	q := market.Quote{Symbol: sym, Price: price, Currency: "USD", Source: market.SourceExchange, FetchedAt: now}
	s.mu.Lock()
	s.cache[sym] = cached{quote: q, at: now}
	s.mu.Unlock()
	return q, nil
}

func (s *Service) mockQuote(sym, note string) (market.Quote, error) {
	p, ok := market.MockPrices[sym]
	if !ok {
		return market.Quote{}, errors.Wrap(ErrUnknownSymbol, sym)
	}
	return market.Quote{Symbol: sym, Price: p, Currency: "USD", Source: market.SourceMock, Note: note, FetchedAt: s.now()}, nil
}

// PriceOrMock never fails for known symbols; used by valuation and alert checks.
func (s *Service) PriceOrMock(ctx context.Context, symbol string) decimal.Decimal {
	q, err := s.Price(ctx, symbol)
	if err != nil {
		return market.MockPrices[normalize(symbol)]
	}
	return q.Price
}
