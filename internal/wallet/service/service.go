package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"findash/internal/auditlog"
	"findash/internal/wallet"
)

var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

type Ledger interface {
	Name() string
	Balances(ctx context.Context, address string) (eth, usdc decimal.Decimal, err error)
	Transfers(ctx context.Context, address string, limit int) ([]wallet.Transfer, error)
	Receipt(ctx context.Context, txHash string) (wallet.TxStatus, error)
}

// simulator is implemented by ledgers that can book simulated transfers.
type simulator interface {
	Apply(t wallet.Transfer) wallet.Transfer
}

type PriceOracle interface {
	PriceOrMock(ctx context.Context, symbol string) decimal.Decimal
}

type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

type Options struct {
	DemoWallet string
	Explorer   string
}

type Service struct {
	ledger   Ledger
	prices   PriceOracle
	activity ActivityLog
	opts     Options
	log      logrus.FieldLogger
	now      func() time.Time

	mu        sync.Mutex
	pending   map[string]wallet.TxStatus
	simulated map[string]wallet.Transfer
}

func NewService(ledger Ledger, prices PriceOracle, activity ActivityLog, opts Options, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		ledger:    ledger,
		prices:    prices,
		activity:  activity,
		opts:      opts,
		log:       log.WithField("component", "wallet"),
		now:       time.Now,
		pending:   make(map[string]wallet.TxStatus),
		simulated: make(map[string]wallet.Transfer),
	}
}

func (s *Service) DemoWallet() string { return s.opts.DemoWallet }

func (s *Service) LedgerName() string { return s.ledger.Name() }

func (s *Service) explorerAddress(addr string) string {
	return strings.TrimRight(s.opts.Explorer, "/") + "/address/" + addr
}

func (s *Service) explorerTx(hash string) string {
	return strings.TrimRight(s.opts.Explorer, "/") + "/tx/" + hash
}

// Balance values an address in USD. An address with no activity yields zeros.
func (s *Service) Balance(ctx context.Context, address string) (wallet.Balance, error) {
	if address == "" {
		address = s.opts.DemoWallet
	}
	if !wallet.IsAddress(address) {
		return wallet.Balance{}, ErrInvalidAddress
	}

	eth, usdc, err := s.ledger.Balances(ctx, address)
	if err != nil {
		return wallet.Balance{}, errors.Wrapf(err, "balances of %s", address)
	}

	ethPrice := decimal.Zero
	if s.prices != nil {
		ethPrice = s.prices.PriceOrMock(ctx, "ETH")
	}
	addr := wallet.Checksum(address)
	return wallet.Balance{
		Address:  addr,
		ETH:      eth,
		USDC:     usdc,
		USDValue: eth.Mul(ethPrice).Add(usdc).Round(2),
		Explorer: s.explorerAddress(addr),
		Source:   s.ledger.Name(),
	}, nil
}

func (s *Service) Transfers(ctx context.Context, address string, limit int) ([]wallet.Transfer, error) {
	if address == "" {
		address = s.opts.DemoWallet
	}
	if !wallet.IsAddress(address) {
		return nil, ErrInvalidAddress
	}
	out, err := s.ledger.Transfers(ctx, address, limit)
	return out, errors.Wrap(err, "transfers")
}

// Transfer simulates sending tokens from the demo wallet. No transaction is
// signed; the returned pseudo hash is tracked until CheckTx confirms it.
func (s *Service) Transfer(ctx context.Context, to string, amount decimal.Decimal, token string) (wallet.TxStatus, error) {
	token = strings.ToUpper(token)
	if token == "" {
		token = "USDC"
	}
	if !wallet.IsAddress(to) {
		return wallet.TxStatus{}, ErrInvalidAddress
	}
	if !amount.IsPositive() {
		return wallet.TxStatus{}, ErrInvalidAmount
	}

	eth, usdc, err := s.ledger.Balances(ctx, s.opts.DemoWallet)
	if err != nil {
		return wallet.TxStatus{}, errors.Wrap(err, "balances")
	}
	available := usdc
	if token == "ETH" {
		available = eth
	}
	if available.LessThan(amount) {
		if s.activity != nil {
			s.activity.Push(ctx, auditlog.CategoryError, fmt.Sprintf("Transfer of %s %s failed: insufficient funds.", amount.String(), token), nil)
		}
		return wallet.TxStatus{}, ErrInsufficientFunds
	}

	t := wallet.Transfer{
		TxHash: pseudoHash(),
		From:   wallet.Checksum(s.opts.DemoWallet),
		To:     wallet.Checksum(to),
		Amount: amount,
		Token:  token,
	}
	if sim, ok := s.ledger.(simulator); ok {
		t = sim.Apply(t)
	}

	st := wallet.TxStatus{
		TxHash:    t.TxHash,
		Status:    wallet.TxPending,
		From:      t.From,
		To:        t.To,
		Amount:    t.Amount,
		Token:     t.Token,
		Simulated: true,
		Explorer:  s.explorerTx(t.TxHash),
		CheckedAt: s.now(),
	}

	s.mu.Lock()
	s.simulated[t.TxHash] = t
	s.pending[t.TxHash] = st
	s.mu.Unlock()

	if s.activity != nil {
		s.activity.Push(ctx, auditlog.CategoryAction, fmt.Sprintf("Sent %s %s to %s.", amount.String(), token, t.To), map[string]interface{}{
			"tx_hash": t.TxHash,
		})
	}
	return st, nil
}

// CheckTx reports a transaction's state. Simulated transfers confirm on first check.
func (s *Service) CheckTx(ctx context.Context, txHash string) (wallet.TxStatus, error) {
	s.mu.Lock()
	t, simulated := s.simulated[txHash]
	s.mu.Unlock()

	var st wallet.TxStatus
	if simulated {
		st = wallet.TxStatus{
			TxHash: txHash, Status: wallet.TxConfirmed, Block: t.Block,
			From: t.From, To: t.To, Amount: t.Amount, Token: t.Token, Simulated: true,
		}
	} else {
		var err error
		st, err = s.ledger.Receipt(ctx, txHash)
		if err != nil {
			return wallet.TxStatus{}, errors.Wrapf(err, "receipt %s", txHash)
		}
	}
	st.Explorer = s.explorerTx(txHash)
	st.CheckedAt = s.now()
	return st, nil
}

// Track adds an externally submitted transaction to the pending set.
func (s *Service) Track(txHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[txHash]; !ok {
		s.pending[txHash] = wallet.TxStatus{TxHash: txHash, Status: wallet.TxPending, CheckedAt: s.now()}
	}
}

// SettlePending checks every tracked transaction and returns those that left
// the pending state; they are no longer tracked afterwards.
func (s *Service) SettlePending(ctx context.Context) []wallet.TxStatus {
	s.mu.Lock()
	hashes := make([]string, 0, len(s.pending))
	for h := range s.pending {
		hashes = append(hashes, h)
	}
	s.mu.Unlock()

	var settled []wallet.TxStatus
	for _, h := range hashes {
		st, err := s.CheckTx(ctx, h)
		if err != nil {
			s.log.WithError(err).WithField("tx_hash", h).Debug("receipt lookup failed")
			continue
		}
		if st.Status == wallet.TxPending || st.Status == wallet.TxUnknown {
			continue
		}
		s.mu.Lock()
		delete(s.pending, h)
		s.mu.Unlock()
		settled = append(settled, st)
	}
	return settled
}

func pseudoHash() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(wallet.Keccak256(id[:]))
}
