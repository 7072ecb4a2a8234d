package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"findash/internal/subscription"
	"findash/internal/subscription/service"
	"findash/pkg/middleware"
)

type Handler struct {
	SubscriptionService *service.Service
}

func NewSubscriptionHandler(ss *service.Service) *Handler {
	return &Handler{SubscriptionService: ss}
}

type snapshotResponse struct {
	subscription.Snapshot
	Changed *bool `json:"changed,omitempty"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.SubscriptionService.Snapshot(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load subscriptions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snapshotResponse{Snapshot: snap})
}

// Act handles POST /subscriptions/{user}/{action}/{sub}.
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	action := subscription.Action(chi.URLParam(r, "action"))
	snap, changed, err := h.SubscriptionService.Apply(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "sub"), action)
	switch {
	case errors.Is(err, service.ErrUnknownAction):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		middleware.WriteError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snapshotResponse{Snapshot: snap, Changed: &changed})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.SubscriptionService.Reset(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to reset subscriptions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snapshotResponse{Snapshot: snap})
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{user}", h.List)
	r.Post("/reset/{user}", h.Reset)
	r.Post("/{user}/{action}/{sub}", h.Act)
}
