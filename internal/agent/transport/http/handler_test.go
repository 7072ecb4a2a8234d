package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/agent/service"
	"findash/pkg/httpx"
)

func serve(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/agent", h.Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestAskReturnsCard(t *testing.T) {
	h := NewHandler(service.NewService(nil, service.Tools{}, nil, nil))
	rec := serve(h, http.MethodPost, "/agent/ask", `{"query":"cancel netflix?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Response struct {
			Type    string `json:"type"`
			Title   string `json:"title"`
			Actions []struct {
				Label string `json:"label"`
			} `json:"actions"`
		} `json:"response"`
		Mode          string   `json:"mode"`
		ExecutedTools []string `json:"executed_tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "card", body.Response.Type)
	assert.Equal(t, "Netflix not used recently", body.Response.Title)
	assert.Len(t, body.Response.Actions, 2)
	assert.Equal(t, "mock", body.Mode)
	assert.Equal(t, []string{"demo-card"}, body.ExecutedTools)
}

func TestAskErrors(t *testing.T) {
	h := NewHandler(service.NewService(nil, service.Tools{}, nil, nil))
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/agent/ask", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/agent/ask", `not json`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, serve(h, http.MethodPost, "/agent/ask", `{"query":"   "}`).Code)
}

func TestAskTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	up := &service.Upstream{Client: httpx.New(httpx.Options{Name: "agent-handler-slow"}), URL: srv.URL, Timeout: 50 * time.Millisecond}
	h := NewHandler(service.NewService(up, service.Tools{}, nil, nil))
	rec := serve(h, http.MethodPost, "/agent/ask", `{"query":"think hard"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "Agent timed out")
}

func TestHealth(t *testing.T) {
	h := NewHandler(service.NewService(nil, service.Tools{}, nil, nil))
	rec := serve(h, http.MethodGet, "/agent/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","mode":"mock"}`, rec.Body.String())
}
