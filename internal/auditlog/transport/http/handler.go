package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"findash/internal/api/dto"
	"findash/internal/auditlog"
	"findash/internal/auditlog/service"
	"findash/internal/metrics"
	"findash/pkg/middleware"
)

type Handler struct {
	Relay    *service.Relay
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewHandler(relay *service.Relay, allowedOrigins []string, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		Relay: relay,
		log:   log.WithField("component", "auditlog-http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return o == "" || origins[o]
			},
		},
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/", h.Clear)
	r.Get("/days", h.Days)
	r.Get("/stream", h.Stream)
}

// ParseQuery reads limit, type, types (comma separated), since (RFC3339) and q.
func ParseQuery(r *http.Request) (auditlog.Query, error) {
	v := r.URL.Query()
	q := auditlog.Query{Limit: 100, Search: v.Get("q")}

	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errInvalid("limit")
		}
		q.Limit = n
	}
	if t := v.Get("type"); t != "" {
		q.Categories = append(q.Categories, auditlog.Category(t))
	}
	if ts := v.Get("types"); ts != "" {
		for _, t := range strings.Split(ts, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Categories = append(q.Categories, auditlog.Category(t))
			}
		}
	}
	if s := v.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errInvalid("since")
		}
		q.Since = since
	}
	return q, nil
}

type invalidParam string

func (e invalidParam) Error() string { return "invalid " + string(e) }

func errInvalid(name string) error { return invalidParam(name) }

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries := h.Relay.List(q)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"count": len(entries),
	})
}

func (h *Handler) Days(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc := time.Local
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid tz")
			return
		}
		loc = l
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"days": h.Relay.GroupByDay(q, loc),
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLogRequest
	if !middleware.DecodeAndValidate(w, r, dto.Validate, &req) {
		return
	}
	e := h.Relay.Push(r.Context(), auditlog.Category(req.Type), req.Message, req.Details)
	middleware.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Relay.Clear(r.Context()); err != nil {
		h.log.WithError(err).Error("clear failed")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to clear logs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Stream upgrades to a websocket and pushes every new entry as JSON.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.LogStreamClients.Inc()
	defer metrics.LogStreamClients.Dec()

	entries, cancel := h.Relay.Subscribe(32)
	defer cancel()

	// Reader goroutine only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
