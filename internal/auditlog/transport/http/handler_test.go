package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/auditlog"
	"findash/internal/auditlog/repository"
	"findash/internal/auditlog/service"
)

func newRouter(t *testing.T) (*chi.Mux, *service.Relay) {
	t.Helper()
	relay := service.NewRelay(repository.NewMemoryRepo(), 100, nil)
	h := NewHandler(relay, nil, nil)
	r := chi.NewRouter()
	r.Get("/logs", h.List)
	r.Get("/logs/days", h.Days)
	r.Post("/logs", h.Create)
	r.Delete("/logs", h.Clear)
	r.Get("/logs/stream", h.Stream)
	return r, relay
}

func TestCreateAndList(t *testing.T) {
	r, relay := newRouter(t)
	relay.Push(context.Background(), auditlog.CategoryInfo, "boot", nil)

	rec := httptest.NewRecorder()
	body := `{"type":"action","message":"Canceled ChatGPT Plus (refunded $20.00)."}`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs?type=action", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Logs  []auditlog.Entry `json:"logs"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Contains(t, resp.Logs[0].Message, "ChatGPT Plus")
}

func TestCreateRejectsUnknownType(t *testing.T) {
	r, _ := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(`{"type":"debug","message":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRejectsBadParams(t *testing.T) {
	r, _ := newRouter(t)
	for _, url := range []string{"/logs?limit=abc", "/logs?since=yesterday", "/logs/days?tz=Nowhere/Land"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, url)
	}
}

func TestParseQueryTypes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/logs?types=action,%20error&limit=5&q=spot", nil)
	q, err := ParseQuery(req)
	require.NoError(t, err)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, "spot", q.Search)
	assert.Equal(t, []auditlog.Category{auditlog.CategoryAction, auditlog.CategoryError}, q.Categories)
}

func TestDaysAndClear(t *testing.T) {
	r, relay := newRouter(t)
	relay.Push(context.Background(), auditlog.CategoryInfo, "a", nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/days?tz=UTC", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Days []auditlog.DayGroup `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Days, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, relay.Len())
}

func TestStreamPushesEntries(t *testing.T) {
	r, relay := newRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/logs/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription is registered right after the upgrade; retry the push until it lands.
	got := make(chan auditlog.Entry, 1)
	go func() {
		var e auditlog.Entry
		if err := conn.ReadJSON(&e); err == nil {
			got <- e
		}
	}()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case e := <-got:
			assert.Equal(t, "Paused Spotify", e.Message)
			return
		case <-tick.C:
			relay.Push(context.Background(), auditlog.CategoryAction, "Paused Spotify", nil)
		case <-deadline:
			t.Fatal("no entry streamed")
		}
	}
}
