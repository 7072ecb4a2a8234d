package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"findash/internal/alert"
	"findash/internal/alert/service"
	"findash/pkg/middleware"
)

type Handler struct {
	Alerts  *service.Service
	Checker *service.Checker
}

func NewHandler(alerts *service.Service, checker *service.Checker) *Handler {
	return &Handler{Alerts: alerts, Checker: checker}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/", h.Clear)
	r.Post("/check", h.Check)
	r.Post("/trigger", h.Trigger)
	r.Post("/{id}/resolve", h.Resolve)
}

// List handles GET /alerts?limit&level&q&run_check&include_resolved.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.Query{Limit: 20, Search: strings.TrimSpace(q.Get("q"))}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		query.Limit = n
	}
	if s := q.Get("level"); s != "" {
		lvl := alert.Level(strings.ToLower(s))
		if !lvl.Valid() {
			middleware.WriteError(w, http.StatusUnprocessableEntity, "Invalid level")
			return
		}
		query.Level = lvl
	}
	query.IncludeResolved, _ = strconv.ParseBool(q.Get("include_resolved"))

	if run, err := strconv.ParseBool(q.Get("run_check")); err == nil && run && h.Checker != nil {
		h.Checker.Run(r.Context())
	}

	alerts := h.Alerts.List(query)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	n := 0
	if h.Checker != nil {
		n = h.Checker.Run(r.Context())
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"generated": n})
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	a, changed, err := h.Alerts.Resolve(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "changed": changed, "alert": a})
}

func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	a, err := h.Alerts.Trigger(r.Context(), r.URL.Query().Get("event_type"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.Alerts.Clear(r.Context())
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
