package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/treasury"
	"findash/pkg/httpx"
)

const addr = "0x9ba79e76F4d1B06fA48855DC34e3D6E7bb1BED2B"

func TestMockMintAndRedeem(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil, nil)
	assert.Equal(t, treasury.ModeMock, svc.Mode())

	res, err := svc.Mint(ctx, decimal.NewFromInt(50), addr)
	require.NoError(t, err)
	assert.Equal(t, "150", res.Balance.Amount.String())
	assert.True(t, strings.HasPrefix(res.TxID, "mint-"))

	_, err = svc.Redeem(ctx, decimal.NewFromInt(500), addr)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	res, err = svc.Redeem(ctx, decimal.NewFromInt(120), addr)
	require.NoError(t, err)
	assert.Equal(t, "30", res.Balance.Amount.String())

	avail, err := svc.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, "30", avail.String())
}

func TestValidation(t *testing.T) {
	svc := NewService(nil, nil, nil)
	_, err := svc.Mint(context.Background(), decimal.Zero, addr)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Mint(context.Background(), decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, ErrAddressRequired)
}

func TestAPIMode(t *testing.T) {
	var seen mintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/stablecoins/mint":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
			w.Write([]byte(`{"data":{"id":"c-1","status":"pending"}}`))
		case "/v1/balances":
			w.Write([]byte(`{"data":{"available":[{"amount":"12.50","currency":"USD"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := httpx.New(httpx.Options{Name: "circle-test", Header: http.Header{"Authorization": []string{"Bearer key"}}})
	svc := NewService(NewClient(h, srv.URL, "ETH-SEPOLIA"), nil, nil)
	assert.Equal(t, treasury.ModeAPI, svc.Mode())

	res, err := svc.Mint(context.Background(), decimal.NewFromInt(10), addr)
	require.NoError(t, err)
	assert.Equal(t, "c-1", res.TxID)
	assert.Equal(t, "ETH-SEPOLIA", seen.Blockchain)
	assert.Equal(t, addr, seen.DestinationAddress)
	assert.True(t, strings.HasPrefix(seen.IdempotencyKey, "mint-"))

	avail, err := svc.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12.5", avail.String())

	_, err = svc.Redeem(context.Background(), decimal.NewFromInt(1), addr)
	assert.Error(t, err)
}
