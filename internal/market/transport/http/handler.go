// internal/market/transport/http/handler.go
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"findash/internal/market/service"
	"findash/pkg/middleware"
)

type Handler struct {
	Prices *service.Service
}

func NewHandler(prices *service.Service) *Handler {
	return &Handler{Prices: prices}
}

// GetPrice serves both ?symbol= and /{symbol}.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		symbol = r.URL.Query().Get("symbol")
	}
	if symbol == "" {
		symbol = "ETH"
	}

	q, err := h.Prices.Price(r.Context(), symbol)
	if errors.Is(err, service.ErrUnknownSymbol) {
		middleware.WriteError(w, http.StatusNotFound, "unknown symbol: "+symbol)
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusBadGateway, "price unavailable")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, q)
}
