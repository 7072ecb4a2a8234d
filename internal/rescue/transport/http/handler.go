package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"findash/internal/api/dto"
	"findash/internal/rescue"
	"findash/internal/rescue/service"
	"findash/pkg/middleware"
)

type Handler struct {
	Rescue *service.Service
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{Rescue: s}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/", h.Clear)
	r.Post("/generate", h.Generate)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/execute", h.Execute)
}

func writeRescueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoPlan):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotApproved):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "rescue failed")
	}
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req dto.RescueGenerateRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	plan, err := h.Rescue.Generate(r.Context(), req.Event, req.UserID)
	if err != nil {
		writeRescueError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	status := rescue.Status(strings.ToLower(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "invalid status")
		return
	}
	plans := h.Rescue.List(limit, status)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"plans": plans, "count": len(plans)})
}

type actionResponse struct {
	OK   bool        `json:"ok"`
	Plan rescue.Plan `json:"plan"`
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, fn func(*http.Request, string) (rescue.Plan, error)) {
	plan, err := fn(r, chi.URLParam(r, "id"))
	if err != nil {
		writeRescueError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, actionResponse{OK: true, Plan: plan})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(r *http.Request, id string) (rescue.Plan, error) { return h.Rescue.Approve(r.Context(), id) })
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(r *http.Request, id string) (rescue.Plan, error) { return h.Rescue.Cancel(r.Context(), id) })
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(r *http.Request, id string) (rescue.Plan, error) { return h.Rescue.Execute(r.Context(), id) })
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.Rescue.Clear(r.Context())
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
