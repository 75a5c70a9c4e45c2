// Package payment settles orders. Each order is paid at most once; the
// amount is always the order's stored total.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/keylock"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

const (
	DefaultReceiptPrefix = "PMT"
	changedBy            = "cashier"
)

// Recorder records payments against orders
type Recorder struct {
	store    store.Store
	locks    *keylock.Locker
	notifier messaging.Notifier
	logger   *logger.Logger
	prefix   string
	now      func() time.Time
}

// NewRecorder creates a Recorder. locks must be shared with the order engine.
func NewRecorder(s store.Store, locks *keylock.Locker, notifier messaging.Notifier, log *logger.Logger, receiptPrefix string) *Recorder {
	if notifier == nil {
		notifier = messaging.NoopNotifier{}
	}
	if receiptPrefix == "" {
		receiptPrefix = DefaultReceiptPrefix
	}
	return &Recorder{
		store:    s,
		locks:    locks,
		notifier: notifier,
		logger:   log,
		prefix:   receiptPrefix,
		now:      time.Now,
	}
}

// GenerateReceiptNumber returns PREFIX-YYYYMMDD-NNNNNN. The random suffix
// makes same-day collisions unlikely; uniqueness is enforced by the store.
func (r *Recorder) GenerateReceiptNumber() string {
	return fmt.Sprintf("%s-%s-%06d", r.prefix, r.now().Format("20060102"), rand.Intn(1_000_000))
}

// ProcessPaymentForOrder records a payment for the order's total and flags it
// paid. The order's status is left alone; see Checkout.
func (r *Recorder) ProcessPaymentForOrder(ctx context.Context, orderID int64, method models.PaymentMethod) (*models.Payment, error) {
	return r.settle(ctx, "payment.ProcessPaymentForOrder", orderID, method, false)
}

// Checkout records the payment and moves the order to PAID in one step. It
// fails while the kitchen still has items pending or cooking.
func (r *Recorder) Checkout(ctx context.Context, orderID int64, method models.PaymentMethod) (*models.Payment, error) {
	return r.settle(ctx, "payment.Checkout", orderID, method, true)
}

func (r *Recorder) settle(ctx context.Context, op string, orderID int64, method models.PaymentMethod, closeOrder bool) (*models.Payment, error) {
	requestID := logger.RequestIDFromContext(ctx)

	unlock := r.locks.Lock(keylock.OrderKey(orderID))
	defer unlock()

	var (
		payment *models.Payment
		updates []*models.StatusUpdateMessage
	)
	err := r.store.WithTx(ctx, func(tx store.Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperror.OrderNotFound(op, orderID)
			}
			return fmt.Errorf("failed to load order: %w", err)
		}
		if o.IsPaid {
			return apperror.OrderAlreadyPaid(op, o.ID)
		}
		if closeOrder {
			if err := checkClosable(ctx, tx, op, o); err != nil {
				return err
			}
		}

		now := r.now().UTC()
		p := &models.Payment{
			OrderID:       o.ID,
			Amount:        o.TotalAmount,
			PaymentTime:   now,
			PaymentMethod: method,
			ReceiptNumber: r.GenerateReceiptNumber(),
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperror.InvalidOperation(op, "payment for order %d conflicts with an existing payment", o.ID)
			}
			return fmt.Errorf("failed to create payment: %w", err)
		}

		ok, err := tx.MarkOrderPaid(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		if !ok {
			return apperror.OrderAlreadyPaid(op, o.ID)
		}

		entry := &models.StatusLogEntry{
			OrderID:   o.ID,
			Status:    string(o.Status),
			ChangedBy: changedBy,
			ChangedAt: now,
			Notes:     fmt.Sprintf("Payment %s recorded (%s %s)", p.ReceiptNumber, p.Amount.String(), p.PaymentMethod),
		}
		if err := tx.AppendStatusLog(ctx, entry); err != nil {
			return fmt.Errorf("failed to append status log: %w", err)
		}
		updates = append(updates, &models.StatusUpdateMessage{
			Entity:      models.EntityPayment,
			OrderID:     o.ID,
			TableNumber: o.TableNumber,
			OldStatus:   "UNPAID",
			NewStatus:   "PAID",
			ChangedBy:   changedBy,
			Timestamp:   now,
		})

		if closeOrder && o.Status != models.OrderPaid {
			from := o.Status
			ok, err := tx.CompareAndSetOrderStatus(ctx, o.ID, from, models.OrderPaid)
			if err != nil {
				return fmt.Errorf("failed to update order status: %w", err)
			}
			if !ok {
				return apperror.InvalidOperation(op, "order %d changed status concurrently", o.ID)
			}
			o.Status = models.OrderPaid
			if err := tx.AppendStatusLog(ctx, &models.StatusLogEntry{
				OrderID:   o.ID,
				Status:    string(models.OrderPaid),
				ChangedBy: changedBy,
				ChangedAt: now,
			}); err != nil {
				return fmt.Errorf("failed to append status log: %w", err)
			}
			updates = append(updates, models.NewOrderStatusMessage(o, string(from), string(models.OrderPaid), changedBy))
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, msg := range updates {
		if err := r.notifier.PublishStatusUpdate(ctx, msg); err != nil {
			r.logger.Error("status_update_publish_failed", "Failed to publish payment update", requestID, err, map[string]interface{}{
				"order_id": orderID,
			})
		}
	}

	r.logger.Info("payment_recorded", fmt.Sprintf("Order %d paid, receipt %s", orderID, payment.ReceiptNumber), requestID, map[string]interface{}{
		"order_id":       orderID,
		"payment_id":     payment.ID,
		"amount":         payment.Amount.String(),
		"payment_method": string(payment.PaymentMethod),
		"close_order":    closeOrder,
	})
	return payment, nil
}

// checkClosable rejects orders that cannot become PAID
func checkClosable(ctx context.Context, tx store.Store, op string, o *models.Order) error {
	if o.Status == models.OrderCancelled {
		return apperror.InvalidOperation(op, "order %d is CANCELLED", o.ID)
	}
	items, err := tx.FindItemsByOrder(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	if outstanding := models.OutstandingItems(items); len(outstanding) > 0 {
		return apperror.InvalidOperation(op, "order %d still has %d item(s) pending or cooking", o.ID, len(outstanding))
	}
	return nil
}

// GetPayment returns a payment by id
func (r *Recorder) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := r.store.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("payment.GetPayment", "payment %d not found", id)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return p, nil
}

func (r *Recorder) ListPayments(ctx context.Context) ([]models.Payment, error) {
	payments, err := r.store.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// PaymentsByTimeRange returns payments made in [start, end)
func (r *Recorder) PaymentsByTimeRange(ctx context.Context, start, end time.Time) ([]models.Payment, error) {
	if !start.Before(end) {
		return nil, apperror.Validation("payment.PaymentsByTimeRange", errors.New("start must be before end"))
	}
	payments, err := r.store.FindPaymentsByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to find payments: %w", err)
	}
	return payments, nil
}
