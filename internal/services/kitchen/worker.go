// Package kitchen runs a kitchen station: it takes tickets for items that
// started cooking, prepares them and reports them READY to the order engine.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/models"
)

// ItemMarker reports finished items; satisfied by order.Service
type ItemMarker interface {
	MarkItemReady(ctx context.Context, orderItemID int64, station string) (bool, error)
}

// TicketSource delivers raw ticket bodies; satisfied by messaging.Consumer
type TicketSource interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
}

// PrepTime is the simulated preparation time per station
func PrepTime(kind models.KitchenType) time.Duration {
	switch kind {
	case models.ColdKitchen:
		return 5 * time.Second
	case models.Bar:
		return 2 * time.Second
	default:
		return 10 * time.Second
	}
}

// Options configure a Worker
type Options struct {
	// Stations limits the worker to some kitchens; empty means all of them
	Stations          []models.KitchenType
	HeartbeatInterval time.Duration
	PrepTime          func(models.KitchenType) time.Duration
}

// Worker represents a kitchen worker
type Worker struct {
	name      string
	opts      Options
	items     ItemMarker
	logger    *logger.Logger
	processed atomic.Int64
}

// NewWorker creates a new kitchen worker
func NewWorker(name string, opts Options, items ItemMarker, log *logger.Logger) *Worker {
	if opts.PrepTime == nil {
		opts.PrepTime = PrepTime
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	return &Worker{
		name:   name,
		opts:   opts,
		items:  items,
		logger: log,
	}
}

// Queue is the queue the worker should consume: its station queue when it
// serves exactly one kitchen, the shared kitchen queue otherwise.
func (w *Worker) Queue() string {
	if len(w.opts.Stations) == 1 {
		return messaging.StationQueue(w.opts.Stations[0])
	}
	return messaging.KitchenQueue
}

// Processed returns how many items this worker has marked READY
func (w *Worker) Processed() int64 {
	return w.processed.Load()
}

// Run consumes tickets until ctx is cancelled
func (w *Worker) Run(ctx context.Context, source TicketSource) error {
	requestID := logger.GenerateRequestID()

	w.logger.Info("worker_started", fmt.Sprintf("Kitchen worker %s started", w.name), requestID, map[string]interface{}{
		"worker_name":        w.name,
		"stations":           w.opts.Stations,
		"queue":              w.Queue(),
		"heartbeat_interval": w.opts.HeartbeatInterval.Seconds(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.heartbeatLoop(ctx)

	err := source.StartConsuming(ctx, w.HandleTicket)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("kitchen worker %s stopped: %w", w.name, err)
	}

	w.logger.Info("graceful_shutdown", fmt.Sprintf("Kitchen worker %s stopped", w.name), requestID, map[string]interface{}{
		"processed": w.Processed(),
	})
	return nil
}

// HandleTicket prepares one item. Tickets for another station are requeued;
// tickets that can never succeed are dropped.
func (w *Worker) HandleTicket(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()
	ctx = logger.ContextWithRequestID(ctx, requestID)

	var ticket models.KitchenTicket
	if err := messaging.ParseMessage(body, &ticket); err != nil {
		w.logger.Error("message_parsing_failed", "Failed to parse kitchen ticket", requestID, err, nil)
		return err
	}
	if ticket.OrderItemID <= 0 {
		return messaging.Permanent(fmt.Errorf("ticket for order %d has no order item", ticket.OrderID))
	}

	fields := map[string]interface{}{
		"order_id":      ticket.OrderID,
		"order_item_id": ticket.OrderItemID,
		"table_number":  ticket.TableNumber,
		"menu_item":     ticket.MenuItemName,
		"quantity":      ticket.Quantity,
		"kitchen_type":  string(ticket.KitchenType),
	}

	if !w.canHandle(ticket.KitchenType) {
		w.logger.Debug("ticket_rejected", fmt.Sprintf("Worker %s does not serve %s", w.name, ticket.KitchenType), requestID, fields)
		return fmt.Errorf("worker %s cannot handle kitchen type %s", w.name, ticket.KitchenType)
	}

	prep := w.opts.PrepTime(ticket.KitchenType)
	w.logger.Debug("cooking_started", fmt.Sprintf("Preparing %dx %s for table %s", ticket.Quantity, ticket.MenuItemName, ticket.TableNumber), requestID, fields)

	timer := time.NewTimer(prep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	ready, err := w.items.MarkItemReady(ctx, ticket.OrderItemID, w.name)
	if err != nil {
		if apperror.IsNotFound(err) {
			return messaging.Permanent(err)
		}
		return fmt.Errorf("failed to mark order item %d ready: %w", ticket.OrderItemID, err)
	}
	if !ready {
		w.logger.Debug("ticket_stale", fmt.Sprintf("Order item %d is no longer cooking", ticket.OrderItemID), requestID, fields)
		return nil
	}

	w.processed.Add(1)
	w.logger.Info("item_ready", fmt.Sprintf("Order item %d is ready", ticket.OrderItemID), requestID, fields)
	return nil
}

func (w *Worker) canHandle(kind models.KitchenType) bool {
	return len(w.opts.Stations) == 0 || slices.Contains(w.opts.Stations, kind)
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logger.Debug("heartbeat_sent", fmt.Sprintf("Kitchen worker %s alive", w.name), "", map[string]interface{}{
				"processed": w.Processed(),
			})
		}
	}
}
