package http

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"findash/internal/api/dto"
	"findash/internal/treasury"
	"findash/internal/treasury/service"
	"findash/pkg/middleware"
)

type Handler struct {
	Treasury *service.Service
	// DefaultAddress receives mints and funds redeems when the request omits one.
	DefaultAddress string
}

func NewHandler(t *service.Service, defaultAddress string) *Handler {
	return &Handler{Treasury: t, DefaultAddress: defaultAddress}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": string(h.Treasury.Mode())})
}

func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	b, err := h.Treasury.Balances(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusBadGateway, "treasury unavailable")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"balances": b, "mode": h.Treasury.Mode()})
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.Treasury.Mint)
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.Treasury.Redeem)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, op func(context.Context, decimal.Decimal, string) (treasury.Result, error)) {
	var req dto.TreasuryAmountRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.HandleValidationError(w, err, "Amount", req.Amount)
		return
	}
	addr := req.Address
	if addr == "" {
		addr = h.DefaultAddress
	}

	res, err := op(r.Context(), amount, addr)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrAddressRequired):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		middleware.WriteError(w, http.StatusBadGateway, "treasury unavailable")
	}
}
