package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"findash/internal/wallet"
	"findash/pkg/httpx"
)

const (
	ethDecimals  = 18
	usdcDecimals = 6
	logLookback  = 50000
)

var (
	balanceOfSelector = hex.EncodeToString(wallet.Keccak256([]byte("balanceOf(address)"))[:4])
	transferTopic     = "0x" + hex.EncodeToString(wallet.Keccak256([]byte("Transfer(address,address,uint256)")))
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// ChainLedger reads balances, token transfers and receipts over Ethereum JSON-RPC.
type ChainLedger struct {
	client *httpx.Client
	url    string
	usdc   string
	seq    int64
}

func NewChainLedger(client *httpx.Client, rpcURL, usdcContract string) *ChainLedger {
	return &ChainLedger{client: client, url: rpcURL, usdc: strings.ToLower(usdcContract)}
}

func (c *ChainLedger) Name() string { return "chain" }

func (c *ChainLedger) call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	req := rpcRequest{JSONRPC: "2.0", ID: atomic.AddInt64(&c.seq, 1), Method: method, Params: params}
	if req.Params == nil {
		req.Params = []interface{}{}
	}

	var resp rpcResponse
	if err := c.client.JSON(ctx, "POST", c.url, req, &resp); err != nil {
		return errors.Wrap(err, method)
	}
	if resp.Error != nil {
		return errors.Wrap(resp.Error, method)
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(resp.Result, out), "decode %s result", method)
}

func (c *ChainLedger) Balances(ctx context.Context, address string) (eth, usdc decimal.Decimal, err error) {
	var weiHex string
	if err := c.call(ctx, "eth_getBalance", &weiHex, address, "latest"); err != nil {
		return eth, usdc, err
	}
	wei, err := parseQuantity(weiHex)
	if err != nil {
		return eth, usdc, err
	}

	data := "0x" + balanceOfSelector + padAddress(address)
	var raw string
	call := map[string]string{"to": c.usdc, "data": data}
	if err := c.call(ctx, "eth_call", &raw, call, "latest"); err != nil {
		return eth, usdc, err
	}
	units, err := parseQuantity(raw)
	if err != nil {
		return eth, usdc, err
	}

	return decimal.NewFromBigInt(wei, -ethDecimals), decimal.NewFromBigInt(units, -usdcDecimals), nil
}

type logEntry struct {
	TxHash      string   `json:"transactionHash"`
	BlockNumber string   `json:"blockNumber"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
}

// Transfers returns recent USDC transfers to or from address, newest first.
func (c *ChainLedger) Transfers(ctx context.Context, address string, limit int) ([]wallet.Transfer, error) {
	var headHex string
	if err := c.call(ctx, "eth_blockNumber", &headHex); err != nil {
		return nil, err
	}
	head, err := parseQuantity(headHex)
	if err != nil {
		return nil, err
	}
	from := new(big.Int).Sub(head, big.NewInt(logLookback))
	if from.Sign() < 0 {
		from.SetInt64(0)
	}

	addrTopic := "0x" + padAddress(address)
	filters := [][]interface{}{
		{transferTopic, addrTopic},
		{transferTopic, nil, addrTopic},
	}

	seen := make(map[string]bool)
	var out []wallet.Transfer
	for _, topics := range filters {
		filter := map[string]interface{}{
			"fromBlock": "0x" + from.Text(16),
			"toBlock":   "latest",
			"address":   c.usdc,
			"topics":    topics,
		}
		var logs []logEntry
		if err := c.call(ctx, "eth_getLogs", &logs, filter); err != nil {
			return nil, err
		}
		for _, l := range logs {
			if len(l.Topics) < 3 || seen[l.TxHash+l.Topics[1]+l.Topics[2]] {
				continue
			}
			seen[l.TxHash+l.Topics[1]+l.Topics[2]] = true

			amount, err := parseQuantity(l.Data)
			if err != nil {
				continue
			}
			out = append(out, wallet.Transfer{
				TxHash: l.TxHash,
				From:   topicAddress(l.Topics[1]),
				To:     topicAddress(l.Topics[2]),
				Amount: decimal.NewFromBigInt(amount, -usdcDecimals),
				Token:  "USDC",
				Block:  parseBlock(l.BlockNumber),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Block > out[j].Block })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type receipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	From        string `json:"from"`
	To          string `json:"to"`
}

func (c *ChainLedger) Receipt(ctx context.Context, txHash string) (wallet.TxStatus, error) {
	var r *receipt
	if err := c.call(ctx, "eth_getTransactionReceipt", &r, txHash); err != nil {
		return wallet.TxStatus{}, err
	}
	st := wallet.TxStatus{TxHash: txHash, Status: wallet.TxPending}
	if r == nil {
		return st, nil
	}
	st.Block = parseBlock(r.BlockNumber)
	st.From, st.To = r.From, r.To
	if r.Status == "0x1" {
		st.Status = wallet.TxConfirmed
	} else {
		st.Status = wallet.TxFailed
	}
	return st, nil
}

// parseQuantity decodes a 0x-prefixed hex quantity; "0x" means zero.
func parseQuantity(s string) (*big.Int, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if h == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(h, 16)
	if !ok {
		return nil, errors.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

func parseBlock(s string) uint64 {
	v, err := parseQuantity(s)
	if err != nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func padAddress(addr string) string {
	return strings.Repeat("0", 24) + strings.ToLower(strings.TrimPrefix(addr, "0x"))
}

func topicAddress(topic string) string {
	t := strings.TrimPrefix(topic, "0x")
	if len(t) < 40 {
		return "0x" + t
	}
	return wallet.Checksum("0x" + t[len(t)-40:])
}
