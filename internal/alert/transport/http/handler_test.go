package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/alert"
	"findash/internal/alert/service"
)

type listResponse struct {
	Alerts []alert.Alert `json:"alerts"`
	Count  int           `json:"count"`
}

func newRouter() http.Handler {
	svc := service.NewService(0, "0xdemo", nil, nil)
	h := NewHandler(svc, service.NewChecker(svc, service.CheckerDeps{}, nil))
	r := chi.NewRouter()
	r.Route("/alerts", h.Routes)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestTriggerListResolve(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodPost, "/alerts/trigger?event_type=wallet_low")
	require.Equal(t, http.StatusOK, rec.Code)
	var a alert.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	do(r, http.MethodPost, "/alerts/trigger?event_type=market_drop")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/alerts/trigger?event_type=bogus").Code)

	var list listResponse
	rec = do(r, http.MethodGet, "/alerts/?level=warning&q=usdc")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, a.ID, list.Alerts[0].ID)

	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodGet, "/alerts/?level=loud").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/alerts/?limit=0").Code)

	path := "/alerts/" + a.EntityID() + "/resolve"
	rec = do(r, http.MethodPost, path)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"changed":true`)
	rec = do(r, http.MethodPost, path)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"changed":false`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/alerts/999/resolve").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/alerts/x/resolve").Code)

	rec = do(r, http.MethodGet, "/alerts/")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	assert.Contains(t, do(r, http.MethodPost, "/alerts/check").Body.String(), `"generated":0`)
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/alerts/").Code)
	require.NoError(t, json.Unmarshal(do(r, http.MethodGet, "/alerts/").Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
}
