package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/httpapi"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

const requestTimeout = 30 * time.Second

// StatusRequest carries a status name; it is parsed strictly before reaching the engine
type StatusRequest struct {
	Status string `json:"status"`
}

// AssistanceRequest toggles the staff-call flag
type AssistanceRequest struct {
	NeedAssistance bool `json:"needAssistance"`
}

// Handler handles HTTP requests for the order engine
type Handler struct {
	service *Service
	logger  *logger.Logger
	ping    func(ctx context.Context) error
}

// NewHandler creates a new order handler. ping backs the health check and may be nil.
func NewHandler(service *Service, log *logger.Logger, ping func(ctx context.Context) error) *Handler {
	return &Handler{
		service: service,
		logger:  log,
		ping:    ping,
	}
}

// RegisterRoutes mounts the order endpoints on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Get("/active", h.ListActiveOrders)
		r.Get("/table/{tableId}", h.ListOrdersByTable)

		r.Post("/customer/{tableNumber}", h.CreateOrGetActiveOrder)
		r.Get("/customer/{tableNumber}", h.GetCurrentOrder)
		r.Put("/customer/{tableNumber}/assistance", h.RequestAssistanceByTable)

		r.Delete("/items/{itemId}", h.RemoveItem)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Get("/history", h.OrderHistory)
			r.Put("/status", h.UpdateOrderStatus)
			r.Post("/items", h.AddItem)
			r.Put("/cancel", h.CancelOrder)
			r.Put("/assistance", h.RequestAssistance)
		})
	})

	r.Put("/api/orderItems/{id}/status", h.UpdateOrderItemStatus)
}

func withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// CreateOrGetActiveOrder handles POST /api/orders/customer/{tableNumber}
func (h *Handler) CreateOrGetActiveOrder(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	tableNumber := chi.URLParam(r, "tableNumber")

	h.logger.Debug("order_received", "Received order request", requestID, map[string]interface{}{
		"table_number":   tableNumber,
		"content_length": r.ContentLength,
	})

	var req models.CreateOrderRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "validation_failed", requestID, err)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	resp, err := h.service.CreateOrGetActiveOrder(ctx, tableNumber, &req)
	if err != nil {
		httpapi.Fail(w, h.logger, "order_creation_failed", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

// GetCurrentOrder handles GET /api/orders/customer/{tableNumber}. A table
// without an active order yields 204.
func (h *Handler) GetCurrentOrder(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	resp, err := h.service.GetCurrentOrderByTableNumber(r.Context(), chi.URLParam(r, "tableNumber"))
	if err != nil {
		httpapi.Fail(w, h.logger, "get_current_order", requestID, err)
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		httpapi.Fail(w, h.logger, "list_orders", httpapi.RequestID(r.Context()), err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) ListActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListActiveOrders(r.Context())
	if err != nil {
		httpapi.Fail(w, h.logger, "list_active_orders", httpapi.RequestID(r.Context()), err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) ListOrdersByTable(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	tableID, err := httpapi.PathInt64(r, "tableId")
	if err != nil {
		httpapi.Fail(w, h.logger, "list_table_orders", requestID, err)
		return
	}
	orders, err := h.service.ListOrdersByTable(r.Context(), tableID)
	if err != nil {
		httpapi.Fail(w, h.logger, "list_table_orders", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "get_order", requestID, err)
		return
	}
	resp, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpapi.Fail(w, h.logger, "get_order", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "order_history", requestID, err)
		return
	}
	entries, err := h.service.OrderHistory(r.Context(), id)
	if err != nil {
		httpapi.Fail(w, h.logger, "order_history", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, entries)
}

// UpdateOrderStatus handles PUT /api/orders/{id}/status
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "update_order_status", requestID, err)
		return
	}

	var req StatusRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "update_order_status", requestID, err)
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		httpapi.Fail(w, h.logger, "update_order_status", requestID, apperror.Validation("order.UpdateOrderStatus", err))
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	o, err := h.service.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		httpapi.Fail(w, h.logger, "update_order_status", requestID, err)
		return
	}
	h.writeOrder(w, r, requestID, o)
}

// AddItem handles POST /api/orders/{id}/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "add_order_item", requestID, err)
		return
	}

	var req models.OrderItemRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "add_order_item", requestID, err)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	item, err := h.service.AddItemToOrder(ctx, id, req.MenuItemID, req.Quantity, req.Note)
	if err != nil {
		httpapi.Fail(w, h.logger, "add_order_item", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, models.NewOrderItemResponse(*item))
}

// RemoveItem handles DELETE /api/orders/items/{itemId}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	itemID, err := httpapi.PathInt64(r, "itemId")
	if err != nil {
		httpapi.Fail(w, h.logger, "remove_order_item", requestID, err)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	o, err := h.service.RemoveItemFromOrder(ctx, itemID)
	if err != nil {
		httpapi.Fail(w, h.logger, "remove_order_item", requestID, err)
		return
	}
	h.writeOrder(w, r, requestID, o)
}

// CancelOrder handles PUT /api/orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "cancel_order", requestID, err)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	o, err := h.service.CancelOrder(ctx, id)
	if err != nil {
		httpapi.Fail(w, h.logger, "cancel_order", requestID, err)
		return
	}
	h.writeOrder(w, r, requestID, o)
}

func (h *Handler) RequestAssistance(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "request_assistance", requestID, err)
		return
	}
	var req AssistanceRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "request_assistance", requestID, err)
		return
	}
	o, err := h.service.RequestAssistance(r.Context(), id, req.NeedAssistance)
	if err != nil {
		httpapi.Fail(w, h.logger, "request_assistance", requestID, err)
		return
	}
	h.writeOrder(w, r, requestID, o)
}

func (h *Handler) RequestAssistanceByTable(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	var req AssistanceRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "request_assistance", requestID, err)
		return
	}
	o, err := h.service.RequestAssistanceByTable(r.Context(), chi.URLParam(r, "tableNumber"), req.NeedAssistance)
	if err != nil {
		httpapi.Fail(w, h.logger, "request_assistance", requestID, err)
		return
	}
	h.writeOrder(w, r, requestID, o)
}

// UpdateOrderItemStatus handles PUT /api/orderItems/{id}/status
func (h *Handler) UpdateOrderItemStatus(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "update_item_status", requestID, err)
		return
	}

	var req StatusRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, h.logger, "update_item_status", requestID, err)
		return
	}
	status, err := models.ParseOrderItemStatus(req.Status)
	if err != nil {
		httpapi.Fail(w, h.logger, "update_item_status", requestID, apperror.Validation("order.UpdateOrderItemStatus", err))
		return
	}

	item, err := h.service.UpdateOrderItemStatus(r.Context(), id, status)
	if err != nil {
		httpapi.Fail(w, h.logger, "update_item_status", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, models.NewOrderItemResponse(*item))
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	if h.ping != nil {
		if err := h.ping(ctx); err != nil {
			healthy = false
			h.logger.Error("health_check_failed", "Dependency check failed", httpapi.RequestID(r.Context()), err, nil)
		}
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"healthy":   healthy,
	}
	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	httpapi.WriteJSON(w, status, response)
}

// writeOrder responds with the full projection of o
func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, requestID string, o *models.Order) {
	resp, err := h.service.ToResponse(r.Context(), o)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			httpapi.WriteError(w, http.StatusGatewayTimeout, "Request timed out", requestID)
			return
		}
		httpapi.Fail(w, h.logger, "encode_order", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}
