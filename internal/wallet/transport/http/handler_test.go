package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/wallet"
	"findash/internal/wallet/service"
)

const demo = "0x9ba79e76F4d1B06fA48855DC34e3D6E7bb1BED2B"

func newRouter() http.Handler {
	svc := service.NewService(service.NewMockLedger(demo), nil, nil,
		service.Options{DemoWallet: demo, Explorer: "https://sepolia.etherscan.io"}, nil)
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Get("/crypto/wallet/balance", h.Balance)
	r.Get("/crypto/wallet/transfers", h.Transfers)
	r.Post("/crypto/transfer", h.Transfer)
	r.Post("/crypto/check_tx", h.CheckTx)
	r.Get("/crypto/health", h.Health)
	return r
}

func TestBalanceEndpoint(t *testing.T) {
	r := newRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crypto/wallet/balance?address=0x00000000000000000000000000000000000000aa", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var b wallet.Balance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.True(t, b.USDC.IsZero())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crypto/wallet/balance?address=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferAndCheck(t *testing.T) {
	r := newRouter()
	body := `{"to":"0x0eaa75FfdadCdb688E1055154818fE1dB0718bab","amount":"2.5","token":"USDC"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crypto/transfer", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var st wallet.TxStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, wallet.TxPending, st.Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crypto/check_tx", strings.NewReader(`{"tx_hash":"`+st.TxHash+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, wallet.TxConfirmed, st.Status)
}

func TestTransferValidation(t *testing.T) {
	r := newRouter()
	for _, body := range []string{
		`{"to":"nope","amount":"1"}`,
		`{"to":"0x0eaa75FfdadCdb688E1055154818fE1dB0718bab","amount":"lots"}`,
		`{"to":"0x0eaa75FfdadCdb688E1055154818fE1dB0718bab","amount":"1","token":"BTC"}`,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crypto/transfer", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/crypto/transfer",
		strings.NewReader(`{"to":"0x0eaa75FfdadCdb688E1055154818fE1dB0718bab","amount":"1000"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
