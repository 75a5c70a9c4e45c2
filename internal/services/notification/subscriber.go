// Package notification prints order, item and payment status changes for
// front-of-house staff.
package notification

import (
	"context"
	"errors"
	"fmt"
	"io"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/models"
)

// Source delivers raw message bodies; satisfied by messaging.Consumer
type Source interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
}

// Subscriber handles notification messages
type Subscriber struct {
	out    io.Writer
	logger *logger.Logger
}

// NewSubscriber creates a subscriber that writes one line per update to out
func NewSubscriber(out io.Writer, log *logger.Logger) *Subscriber {
	return &Subscriber{
		out:    out,
		logger: log,
	}
}

// Run consumes updates until ctx is cancelled
func (s *Subscriber) Run(ctx context.Context, source Source) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := source.StartConsuming(ctx, s.HandleNotification)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("notification subscriber stopped: %w", err)
	}

	s.logger.Info("graceful_shutdown", "Notification subscriber stopped", requestID, nil)
	return nil
}

// HandleNotification processes incoming status update notifications
func (s *Subscriber) HandleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var update models.StatusUpdateMessage
	if err := messaging.ParseMessage(body, &update); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return err
	}

	line := Format(&update)
	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	s.logger.Debug("notification_displayed", line, requestID, map[string]interface{}{
		"entity":       update.Entity,
		"order_id":     update.OrderID,
		"table_number": update.TableNumber,
		"old_status":   update.OldStatus,
		"new_status":   update.NewStatus,
		"changed_by":   update.ChangedBy,
	})
	return nil
}

// Format renders an update as a single human-readable line
func Format(u *models.StatusUpdateMessage) string {
	ts := u.Timestamp.Format("2006-01-02 15:04:05")
	table := u.TableNumber
	if table == "" {
		table = "?"
	}

	switch u.Entity {
	case models.EntityPayment:
		return fmt.Sprintf("[%s] Table %s: order %d has been paid.", ts, table, u.OrderID)
	case models.EntityOrderItem:
		var itemID int64
		if u.OrderItemID != nil {
			itemID = *u.OrderItemID
		}
		switch models.OrderItemStatus(u.NewStatus) {
		case models.ItemCooking:
			return fmt.Sprintf("[%s] Table %s: item %d of order %d is being prepared.", ts, table, itemID, u.OrderID)
		case models.ItemReady:
			return fmt.Sprintf("[%s] Table %s: item %d of order %d is ready to serve (%s).", ts, table, itemID, u.OrderID, u.ChangedBy)
		case models.ItemCancelled:
			return fmt.Sprintf("[%s] Table %s: item %d of order %d was cancelled.", ts, table, itemID, u.OrderID)
		}
		return fmt.Sprintf("[%s] Table %s: item %d of order %d changed from %s to %s by %s.",
			ts, table, itemID, u.OrderID, u.OldStatus, u.NewStatus, u.ChangedBy)
	}

	switch models.OrderStatus(u.NewStatus) {
	case models.OrderServing:
		return fmt.Sprintf("[%s] Table %s: order %d is now being served.", ts, table, u.OrderID)
	case models.OrderPaid:
		return fmt.Sprintf("[%s] Table %s: order %d is closed. Thank you!", ts, table, u.OrderID)
	case models.OrderCancelled:
		return fmt.Sprintf("[%s] Table %s: order %d has been cancelled.", ts, table, u.OrderID)
	}
	return fmt.Sprintf("[%s] Table %s: order %d changed from %s to %s by %s.",
		ts, table, u.OrderID, u.OldStatus, u.NewStatus, u.ChangedBy)
}
