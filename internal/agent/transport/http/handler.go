package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"findash/internal/agent/service"
	"findash/internal/api/dto"
	"findash/pkg/middleware"
)

type Handler struct {
	Agent *service.Service
}

func NewHandler(a *service.Service) *Handler {
	return &Handler{Agent: a}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/ask", h.Ask)
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req dto.AgentAskRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	user := req.UserID
	if user == "" {
		user = middleware.UserID(r.Context())
	}
	reply, err := h.Agent.Ask(r.Context(), req.Query, user)
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, service.ErrTimeout):
		middleware.WriteError(w, http.StatusGatewayTimeout, err.Error())
		return
	case err != nil:
		middleware.WriteError(w, http.StatusInternalServerError, "agent failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": string(h.Agent.Mode())})
}
