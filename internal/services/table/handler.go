package table

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-orders/internal/httpapi"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

// Handler exposes the Registry over HTTP
type Handler struct {
	registry *Registry
	logger   *logger.Logger
}

// NewHandler creates a new table HTTP handler
func NewHandler(registry *Registry, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   log,
	}
}

// RegisterRoutes mounts the table endpoints on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/tables", func(r chi.Router) {
		r.Get("/", h.list(false))
		r.Get("/all", h.list(true))
		r.Get("/status/{status}", h.ListByStatus)
		r.Get("/number/{tableNumber}", h.GetByNumber)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Put("/status/{status}", h.SetStatus)
			r.Post("/open", h.transition(h.registry.Open))
			r.Post("/occupy", h.transition(h.registry.Occupy))
			r.Post("/close", h.transition(h.registry.Close))
			r.Post("/hide", h.transition(h.registry.Hide))
			r.Post("/show", h.transition(h.registry.Show))
			r.Post("/assign/{waiterId}", h.AssignWaiter)
		})
	})
}

func (h *Handler) list(includeHidden bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := h.registry.List(r.Context(), includeHidden)
		if err != nil {
			httpapi.Fail(w, h.logger, "list_tables", httpapi.RequestID(r.Context()), err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, nonNil(tables))
	}
}

func (h *Handler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	tables, err := h.registry.ListByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		httpapi.Fail(w, h.logger, "list_tables_by_status", httpapi.RequestID(r.Context()), err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, nonNil(tables))
}

func (h *Handler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	t, err := h.registry.FindByNumber(r.Context(), chi.URLParam(r, "tableNumber"))
	if err != nil {
		httpapi.Fail(w, h.logger, "get_table", httpapi.RequestID(r.Context()), err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "get_table", requestID, err)
		return
	}
	t, err := h.registry.Get(r.Context(), id)
	if err != nil {
		httpapi.Fail(w, h.logger, "get_table", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	var req CreateRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "create_table", requestID, err)
		return
	}
	t, err := h.registry.Create(r.Context(), req)
	if err != nil {
		httpapi.Fail(w, h.logger, "create_table", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "update_table", requestID, err)
		return
	}
	var req UpdateRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "update_table", requestID, err)
		return
	}
	t, err := h.registry.Update(r.Context(), id, req)
	if err != nil {
		httpapi.Fail(w, h.logger, "update_table", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "set_table_status", requestID, err)
		return
	}
	t, err := h.registry.SetStatus(r.Context(), id, chi.URLParam(r, "status"))
	if err != nil {
		httpapi.Fail(w, h.logger, "set_table_status", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) AssignWaiter(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "assign_waiter", requestID, err)
		return
	}
	waiterID, err := httpapi.PathInt64(r, "waiterId")
	if err != nil {
		httpapi.Fail(w, h.logger, "assign_waiter", requestID, err)
		return
	}
	t, err := h.registry.AssignWaiter(r.Context(), id, waiterID)
	if err != nil {
		httpapi.Fail(w, h.logger, "assign_waiter", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) transition(fn func(ctx context.Context, id int64) (*models.Table, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := httpapi.RequestID(r.Context())
		id, err := httpapi.PathInt64(r, "id")
		if err != nil {
			httpapi.Fail(w, h.logger, "table_transition", requestID, err)
			return
		}
		t, err := fn(r.Context(), id)
		if err != nil {
			httpapi.Fail(w, h.logger, "table_transition", requestID, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, t)
	}
}

func nonNil(tables []models.Table) []models.Table {
	if tables == nil {
		return []models.Table{}
	}
	return tables
}
