package http

import (
	"net/http"

	"findash/internal/api/dto"
	"findash/internal/payment/service"
	"findash/pkg/middleware"
)

type Handler struct {
	Payments *service.Service
}

func NewHandler(p *service.Service) *Handler {
	return &Handler{Payments: p}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	res, err := h.Payments.Cancel(r.Context(), req.Plan)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	res, err := h.Payments.Refund(r.Context(), req.Plan)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

func writePaymentError(w http.ResponseWriter, err error) {
	if service.IsBusiness(err) {
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	middleware.WriteJSON(w, http.StatusBadGateway, map[string]interface{}{"success": false, "error": "payment processor unavailable"})
}
