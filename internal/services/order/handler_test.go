package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

func newRouter(f *fixture, ping func(ctx context.Context) error) chi.Router {
	r := chi.NewRouter()
	NewHandler(f.svc, logger.Discard(), ping).RegisterRoutes(r)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandler_CreateAndCurrentOrder(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f, nil)

	rec := serve(r, http.MethodGet, "/api/orders/customer/A_01", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(r, http.MethodPost, "/api/orders/customer/A_01", `{"items":[{"menuItemId":1,"quantity":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created models.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "A_01", created.TableNumber)
	assert.Equal(t, models.OrderPending, created.Status)
	require.Len(t, created.Items, 1)

	rec = serve(r, http.MethodGet, "/api/orders/customer/A_01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var current models.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, created.ID, current.ID)
}

func TestHandler_Errors(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f, nil)

	resp, err := f.svc.CreateOrGetActiveOrder(context.Background(), "A_02", items(line(1, 1)))
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown field", http.MethodPost, "/api/orders/customer/A_01", `{"items":[],"extra":1}`, http.StatusBadRequest},
		{"no items", http.MethodPost, "/api/orders/customer/A_01", `{"items":[]}`, http.StatusBadRequest},
		{"unknown table", http.MethodPost, "/api/orders/customer/Z_99", `{"items":[{"menuItemId":1,"quantity":1}]}`, http.StatusNotFound},
		{"unavailable item", http.MethodPost, "/api/orders/customer/A_01", `{"items":[{"menuItemId":14,"quantity":1}]}`, http.StatusConflict},
		{"bad status", http.MethodPut, fmt.Sprintf("/api/orders/%d/status", resp.ID), `{"status":"DONE"}`, http.StatusBadRequest},
		{"paid with pending items", http.MethodPut, fmt.Sprintf("/api/orders/%d/status", resp.ID), `{"status":"PAID"}`, http.StatusConflict},
		{"missing order", http.MethodGet, "/api/orders/999", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/orders/abc", "", http.StatusBadRequest},
		{"history of missing order", http.MethodGet, "/api/orders/999/history", "", http.StatusNotFound},
		{"bad item status", http.MethodPut, fmt.Sprintf("/api/orderItems/%d/status", resp.Items[0].ID), `{"status":"BURNT"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandler_StatusFlow(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f, nil)

	resp, err := f.svc.CreateOrGetActiveOrder(context.Background(), "A_03", items(line(11, 1)))
	require.NoError(t, err)

	rec := serve(r, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", resp.ID), `{"status":"serving"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(r, http.MethodPut, fmt.Sprintf("/api/orderItems/%d/status", resp.Items[0].ID), `{"status":"SERVED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(r, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", resp.ID), `{"status":"PAID"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid models.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, models.OrderPaid, paid.Status)

	rec = serve(r, http.MethodGet, fmt.Sprintf("/api/orders/%d/history", resp.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.StatusLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.NotEmpty(t, history)

	rec = serve(r, http.MethodPut, "/api/orders/customer/A_03/assistance", `{"needAssistance":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a PAID order is no longer active")
}

func TestHandler_HealthCheck(t *testing.T) {
	f := newFixture(t)

	rec := serve(newRouter(f, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := func(context.Context) error { return errors.New("connection refused") }
	rec = serve(newRouter(f, down), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
