package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/httpapi"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

// Handler exposes the Recorder over HTTP
type Handler struct {
	recorder *Recorder
	logger   *logger.Logger
}

// NewHandler creates a new payment handler
func NewHandler(recorder *Recorder, log *logger.Logger) *Handler {
	return &Handler{
		recorder: recorder,
		logger:   log,
	}
}

// RegisterRoutes mounts the payment endpoints on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/process", h.settle("process_payment", h.recorder.ProcessPaymentForOrder))
		r.Post("/checkout", h.settle("checkout", h.recorder.Checkout))
		r.Get("/", h.ListPayments)
		r.Get("/{id}", h.GetPayment)
	})
}

func (h *Handler) settle(action string, fn func(ctx context.Context, orderID int64, method models.PaymentMethod) (*models.Payment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := httpapi.RequestID(r.Context())

		var req models.PaymentRequest
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			httpapi.Fail(w, h.logger, action, requestID, err)
			return
		}
		if req.OrderID <= 0 {
			httpapi.Fail(w, h.logger, action, requestID, apperror.Validation(action, errors.New("orderId is required")))
			return
		}
		method, err := models.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			httpapi.Fail(w, h.logger, action, requestID, apperror.Validation(action, err))
			return
		}

		p, err := fn(r.Context(), req.OrderID, method)
		if err != nil {
			httpapi.Fail(w, h.logger, action, requestID, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusCreated, p)
	}
}

// ListPayments handles GET /api/payments with optional RFC3339 start and end
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	startRaw, endRaw := r.URL.Query().Get("start"), r.URL.Query().Get("end")

	var (
		payments []models.Payment
		err      error
	)
	switch {
	case startRaw == "" && endRaw == "":
		payments, err = h.recorder.ListPayments(r.Context())
	case startRaw == "" || endRaw == "":
		err = apperror.Validation("payment.ListPayments", errors.New("start and end must be given together"))
	default:
		var start, end time.Time
		if start, err = parseTime("start", startRaw); err != nil {
			break
		}
		if end, err = parseTime("end", endRaw); err != nil {
			break
		}
		payments, err = h.recorder.PaymentsByTimeRange(r.Context(), start, end)
	}
	if err != nil {
		httpapi.Fail(w, h.logger, "list_payments", requestID, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	httpapi.WriteJSON(w, http.StatusOK, payments)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(r.Context())
	id, err := httpapi.PathInt64(r, "id")
	if err != nil {
		httpapi.Fail(w, h.logger, "get_payment", requestID, err)
		return
	}
	p, err := h.recorder.GetPayment(r.Context(), id)
	if err != nil {
		httpapi.Fail(w, h.logger, "get_payment", requestID, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func parseTime(name, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.Validation("payment.ListPayments", fmt.Errorf("%s must be RFC3339: %w", name, err))
	}
	return t, nil
}
