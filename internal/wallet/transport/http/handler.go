package http

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"findash/internal/api/dto"
	"findash/internal/wallet"
	"findash/internal/wallet/service"
	"findash/pkg/middleware"
)

type Handler struct {
	Wallet *service.Service
}

func NewHandler(w *service.Service) *Handler {
	return &Handler{Wallet: w}
}

func writeWalletError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAddress), errors.Is(err, service.ErrInvalidAmount):
		middleware.WriteError(w, http.StatusBadRequest, errors.Cause(err).Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		middleware.WriteError(w, http.StatusBadGateway, "chain unavailable")
	}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Wallet.Balance(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeWalletError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) Transfers(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	out, err := h.Wallet.Transfers(r.Context(), r.URL.Query().Get("address"), limit)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"transfers": out, "count": len(out)})
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.HandleValidationError(w, err, "Amount", req.Amount)
		return
	}
	st, err := h.Wallet.Transfer(r.Context(), req.To, amount, req.Token)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, st)
}

func (h *Handler) CheckTx(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckTxRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	st, err := h.Wallet.CheckTx(r.Context(), req.TxHash)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	if st.Status == wallet.TxPending {
		h.Wallet.Track(req.TxHash)
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"ledger":      h.Wallet.LedgerName(),
		"demo_wallet": h.Wallet.DemoWallet(),
	})
}
