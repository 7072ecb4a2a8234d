package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	"findash/internal/treasury"
	"findash/pkg/httpx"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAddressRequired     = errors.New("address required")
	ErrInsufficientBalance = errors.New("Insufficient Circle balance")
)

type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

// Client is the stablecoin sandbox REST client.
type Client struct {
	http       *httpx.Client
	baseURL    string
	blockchain string
}

func NewClient(h *httpx.Client, baseURL, blockchain string) *Client {
	return &Client{http: h, baseURL: strings.TrimRight(baseURL, "/"), blockchain: blockchain}
}

type money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type mintRequest struct {
	IdempotencyKey     string `json:"idempotencyKey"`
	Amount             money  `json:"amount"`
	Blockchain         string `json:"blockchain"`
	DestinationAddress string `json:"destinationAddress,omitempty"`
	SourceAddress      string `json:"sourceAddress,omitempty"`
}

type submitResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

type balancesResponse struct {
	Data struct {
		Available []money `json:"available"`
	} `json:"data"`
}

func (c *Client) submit(ctx context.Context, op treasury.Operation, amount decimal.Decimal, address string) (submitResponse, error) {
	body := mintRequest{
		IdempotencyKey: fmt.Sprintf("%s-%s", op, uuid.NewString()),
		Amount:         money{Amount: amount.String(), Currency: "USD"},
		Blockchain:     c.blockchain,
	}
	if op == treasury.OpMint {
		body.DestinationAddress = address
	} else {
		body.SourceAddress = address
	}

	var out submitResponse
	err := c.http.JSON(ctx, http.MethodPost, c.baseURL+"/v1/stablecoins/"+string(op), body, &out)
	return out, errors.Wrapf(err, "circle %s", op)
}

func (c *Client) balances(ctx context.Context) ([]treasury.Balance, error) {
	var out balancesResponse
	if err := c.http.JSON(ctx, http.MethodGet, c.baseURL+"/v1/balances", nil, &out); err != nil {
		return nil, errors.Wrap(err, "circle balances")
	}
	res := make([]treasury.Balance, 0, len(out.Data.Available))
	for _, m := range out.Data.Available {
		amt, err := decimal.NewFromString(m.Amount)
		if err != nil {
			continue
		}
		res = append(res, treasury.Balance{Currency: m.Currency, Amount: amt})
	}
	return res, nil
}

// Service mints and redeems USDC against the sandbox account, or against an
// in-memory USD balance when no API client is configured.
type Service struct {
	client   *Client
	activity ActivityLog
	log      logrus.FieldLogger

	mu      sync.Mutex
	mockUSD decimal.Decimal
}

func NewService(client *Client, activity ActivityLog, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		client:   client,
		activity: activity,
		log:      log.WithField("component", "treasury"),
		mockUSD:  decimal.NewFromInt(100),
	}
}

func (s *Service) Mode() treasury.Mode {
	if s.client != nil {
		return treasury.ModeAPI
	}
	return treasury.ModeMock
}

func (s *Service) push(ctx context.Context, cat auditlog.Category, msg string, details map[string]interface{}) {
	if s.activity != nil {
		s.activity.Push(ctx, cat, msg, details)
	}
}

func (s *Service) Balances(ctx context.Context) ([]treasury.Balance, error) {
	if s.client != nil {
		return s.client.balances(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// USDC mirrors USD in mock mode.
	return []treasury.Balance{
		{Currency: "USD", Amount: s.mockUSD},
		{Currency: "USDC", Amount: s.mockUSD},
	}, nil
}

func (s *Service) Mint(ctx context.Context, amount decimal.Decimal, address string) (treasury.Result, error) {
	return s.run(ctx, treasury.OpMint, amount, address)
}

func (s *Service) Redeem(ctx context.Context, amount decimal.Decimal, address string) (treasury.Result, error) {
	return s.run(ctx, treasury.OpRedeem, amount, address)
}

func (s *Service) run(ctx context.Context, op treasury.Operation, amount decimal.Decimal, address string) (treasury.Result, error) {
	if !amount.IsPositive() {
		return treasury.Result{}, ErrInvalidAmount
	}
	if address == "" {
		return treasury.Result{}, ErrAddressRequired
	}

	res := treasury.Result{
		Status:   "submitted",
		Action:   op,
		Amount:   amount,
		Currency: "USDC",
		Address:  address,
		Mode:     s.Mode(),
	}

	if s.client != nil {
		out, err := s.client.submit(ctx, op, amount, address)
		if err != nil {
			s.push(ctx, auditlog.CategoryError, fmt.Sprintf("Circle %s failed: %v", op, err), nil)
			return treasury.Result{}, err
		}
		res.TxID = out.Data.ID
		s.push(ctx, auditlog.CategorySuccess, fmt.Sprintf("Circle %s %s USD (%s).", op, amount.String(), address), map[string]interface{}{"circle_tx_id": out.Data.ID})
		return res, nil
	}

	s.mu.Lock()
	if op == treasury.OpRedeem {
		if amount.GreaterThan(s.mockUSD) {
			s.mu.Unlock()
			s.push(ctx, auditlog.CategoryError, "Circle redeem failed: Insufficient Circle balance", nil)
			return treasury.Result{}, ErrInsufficientBalance
		}
		s.mockUSD = s.mockUSD.Sub(amount)
	} else {
		s.mockUSD = s.mockUSD.Add(amount)
	}
	balance := s.mockUSD
	s.mu.Unlock()

	res.TxID = fmt.Sprintf("%s-%s", op, uuid.NewString()[:8])
	res.Balance = &treasury.Balance{Currency: "USD", Amount: balance}
	res.Note = "Mock Circle " + string(op)
	verb := "Minted"
	if op == treasury.OpRedeem {
		verb = "Redeemed"
	}
	s.push(ctx, auditlog.CategorySuccess, fmt.Sprintf("[MOCK] %s %s USDC. USD=%s", verb, amount.String(), balance.String()), nil)
	return res, nil
}

// Available returns the USD-denominated balance used by low-balance checks.
func (s *Service) Available(ctx context.Context) (decimal.Decimal, error) {
	balances, err := s.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if b.Currency == "USD" || b.Currency == "USDC" {
			return b.Amount, nil
		}
	}
	return decimal.Zero, nil
}
