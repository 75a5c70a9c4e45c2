package table

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/keylock"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store/memstore"
)

func newTestRegistry(t *testing.T) (*Registry, *memstore.Store) {
	t.Helper()
	s := memstore.NewSeeded()
	return NewRegistry(s, keylock.New(), logger.Discard()), s
}

func TestList(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	visible, err := r.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, visible, 12)
	for _, tb := range visible {
		assert.True(t, tb.IsActive, tb.TableNumber)
	}

	all, err := r.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 15)
}

func TestListByStatus(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Open(ctx, 1)
	require.NoError(t, err)

	opened, err := r.ListByStatus(ctx, "opened")
	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.Equal(t, "A_01", opened[0].TableNumber)

	_, err = r.ListByStatus(ctx, "AVAILABLE")
	assert.True(t, apperror.IsValidation(err))
}

func TestFindByNumber(t *testing.T) {
	r, _ := newTestRegistry(t)

	tb, err := r.FindByNumber(context.Background(), "B_02")
	require.NoError(t, err)
	assert.Equal(t, "B", tb.Zone)

	_, err = r.FindByNumber(context.Background(), "Z_99")
	assert.True(t, apperror.IsNotFound(err))
}

func TestStatusTransitions(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Occupy(ctx, 1)
	assert.True(t, apperror.IsInvalidOperation(err), "a closed table cannot be occupied")

	tb, err := r.Open(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TableOpened, tb.Status)
	assert.NotNil(t, tb.OccupiedAt)

	_, err = r.Open(ctx, 1)
	assert.True(t, apperror.IsInvalidOperation(err), "an opened table cannot be reopened")

	tb, err = r.Occupy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, tb.Status)

	tb, err = r.Close(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TableClosed, tb.Status)
	assert.Nil(t, tb.OccupiedAt)
}

func TestClose_BlockedByUnpaidOrder(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	order := &models.Order{TableID: 2, Status: models.OrderServing}
	require.NoError(t, s.CreateOrder(ctx, order))

	_, err := r.Close(ctx, 2)
	require.True(t, apperror.IsInvalidOperation(err))

	ok, err := s.MarkOrderPaid(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = r.Close(ctx, 2)
	assert.NoError(t, err)
}

func TestClose_IgnoresCancelledOrders(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, s.CreateOrder(ctx, &models.Order{TableID: 3, Status: models.OrderCancelled}))

	_, err := r.Close(ctx, 3)
	assert.NoError(t, err)
}

func TestHideAndShow(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Open(ctx, 4)
	require.NoError(t, err)
	_, err = r.Hide(ctx, 4)
	assert.True(t, apperror.IsInvalidOperation(err), "only closed tables can be hidden")

	_, err = r.Close(ctx, 4)
	require.NoError(t, err)
	tb, err := r.Hide(ctx, 4)
	require.NoError(t, err)
	assert.False(t, tb.IsActive)

	tb, err = r.Show(ctx, 4)
	require.NoError(t, err)
	assert.True(t, tb.IsActive)
}

func TestAssignWaiter(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	tb, err := r.AssignWaiter(ctx, 1, 3)
	require.NoError(t, err)
	require.NotNil(t, tb.CurrentWaiterID)
	assert.Equal(t, int64(3), *tb.CurrentWaiterID)

	waiter, err := r.CurrentWaiterID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), *waiter)

	_, err = r.AssignWaiter(ctx, 1, 999)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateAndUpdate(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	tb, err := r.Create(ctx, CreateRequest{TableNumber: "D_01", Zone: "D", Capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, models.TableClosed, tb.Status)
	assert.True(t, tb.IsActive)

	_, err = r.Create(ctx, CreateRequest{TableNumber: "D_01", Zone: "D", Capacity: 2})
	assert.True(t, apperror.IsInvalidOperation(err))

	_, err = r.Create(ctx, CreateRequest{TableNumber: "D_02", Zone: "D", Capacity: 0})
	assert.True(t, apperror.IsValidation(err))

	updated, err := r.Update(ctx, tb.ID, UpdateRequest{TableNumber: "D_10", Zone: "D", Capacity: 8})
	require.NoError(t, err)
	assert.Equal(t, "D_10", updated.TableNumber)
	assert.Equal(t, 8, updated.Capacity)

	_, err = r.Update(ctx, tb.ID, UpdateRequest{TableNumber: "A_01", Zone: "A", Capacity: 8})
	assert.True(t, apperror.IsInvalidOperation(err))
}

func TestCreateAndUpdate_TableNumberFormat(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	for _, number := range []string{"VIP-1", "a_01", "A_1", "A01", " A_01"} {
		_, err := r.Create(ctx, CreateRequest{TableNumber: number, Zone: "VIP", Capacity: 4})
		assert.True(t, apperror.IsValidation(err), "create %q", number)
	}
	_, err := s.FindTableByNumber(ctx, "VIP-1")
	assert.Error(t, err, "rejected numbers are not stored")

	tb, err := r.Create(ctx, CreateRequest{TableNumber: "VIP_01", Zone: "VIP", Capacity: 4})
	require.NoError(t, err)

	_, err = r.Update(ctx, tb.ID, UpdateRequest{TableNumber: "VIP-1", Zone: "VIP", Capacity: 4})
	assert.True(t, apperror.IsValidation(err))
	got, err := r.Get(ctx, tb.ID)
	require.NoError(t, err)
	assert.Equal(t, "VIP_01", got.TableNumber)
}

func TestSetStatus(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	tb, err := r.SetStatus(ctx, 5, "occupied")
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, tb.Status)

	_, err = r.SetStatus(ctx, 5, "dirty")
	assert.True(t, apperror.IsValidation(err))

	_, err = r.SetStatus(ctx, 999, "CLOSED")
	assert.True(t, apperror.IsNotFound(err))
}

func TestHandler(t *testing.T) {
	reg, _ := newTestRegistry(t)
	router := chi.NewRouter()
	NewHandler(reg, logger.Discard()).RegisterRoutes(router)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"list", http.MethodGet, "/api/tables", "", http.StatusOK},
		{"get by number", http.MethodGet, "/api/tables/number/A_01", "", http.StatusOK},
		{"unknown number", http.MethodGet, "/api/tables/number/Z_01", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/tables/abc", "", http.StatusBadRequest},
		{"bad status", http.MethodGet, "/api/tables/status/DIRTY", "", http.StatusBadRequest},
		{"open", http.MethodPost, "/api/tables/1/open", "", http.StatusOK},
		{"open twice", http.MethodPost, "/api/tables/1/open", "", http.StatusConflict},
		{"create", http.MethodPost, "/api/tables", `{"tableNumber":"E_01","zone":"E","capacity":4}`, http.StatusCreated},
		{"create malformed number", http.MethodPost, "/api/tables", `{"tableNumber":"VIP-1","zone":"VIP","capacity":4}`, http.StatusBadRequest},
		{"create unknown field", http.MethodPost, "/api/tables", `{"tableNumber":"E_02","zone":"E","capacity":4,"vip":true}`, http.StatusBadRequest},
		{"assign unknown waiter", http.MethodPost, "/api/tables/1/assign/77", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables/status/OPENED", nil))
	var opened []models.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	require.Len(t, opened, 1)
	assert.Equal(t, "A_01", opened[0].TableNumber)
}
