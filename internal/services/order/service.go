// Package order is the order lifecycle engine: it opens orders on tables,
// adds and removes items, moves orders and items through their status
// machines and schedules the delayed PENDING auto-advances.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/keylock"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/scheduler"
	"restaurant-orders/internal/store"
)

// Actors recorded in the status log
const (
	ChangedByStaff     = "staff"
	ChangedByScheduler = "scheduler"
)

// MenuCatalog resolves menu items; satisfied by catalog.Catalog
type MenuCatalog interface {
	FindMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
}

// Scheduler runs a delayed action; satisfied by scheduler.Scheduler
type Scheduler interface {
	Schedule(name string, delay time.Duration, action scheduler.Action) error
}

// Options are the static engine settings
type Options struct {
	AutoAdvanceDelay time.Duration
	AddedItemPrefix  string
}

// Service implements the order engine
type Service struct {
	store     store.Store
	menu      MenuCatalog
	locks     *keylock.Locker
	scheduler Scheduler
	notifier  messaging.Notifier
	logger    *logger.Logger
	opts      Options
	now       func() time.Time
}

// NewService wires the engine. A nil notifier disables event publishing.
func NewService(s store.Store, menu MenuCatalog, locks *keylock.Locker, sched Scheduler, notifier messaging.Notifier, log *logger.Logger, opts Options) *Service {
	if notifier == nil {
		notifier = messaging.NoopNotifier{}
	}
	return &Service{
		store:     s,
		menu:      menu,
		locks:     locks,
		scheduler: sched,
		notifier:  notifier,
		logger:    log,
		opts:      opts,
		now:       time.Now,
	}
}

// addedNote marks an item appended to an already open order
func (s *Service) addedNote(note string) string {
	prefix := s.opts.AddedItemPrefix
	if prefix == "" {
		return note
	}
	if strings.TrimSpace(note) == "" {
		return strings.TrimRight(prefix, " -:")
	}
	return prefix + note
}

// effects are collected inside a transaction and released after it commits
type effects struct {
	tableNumber string
	updates     []*models.StatusUpdateMessage
	cooking     []models.OrderItem
	timers      []timer
}

type timer struct {
	name   string
	action scheduler.Action
}

func (fx *effects) schedule(name string, action scheduler.Action) {
	fx.timers = append(fx.timers, timer{name: name, action: action})
}

// recordOrder logs and queues an order status change
func (s *Service) recordOrder(ctx context.Context, tx store.Store, fx *effects, o *models.Order, from, to models.OrderStatus, changedBy, notes string) error {
	entry := &models.StatusLogEntry{
		OrderID:   o.ID,
		Status:    string(to),
		ChangedBy: changedBy,
		ChangedAt: s.now().UTC(),
		Notes:     notes,
	}
	if err := tx.AppendStatusLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to append status log: %w", err)
	}
	fx.updates = append(fx.updates, models.NewOrderStatusMessage(o, string(from), string(to), changedBy))
	return nil
}

// recordItem logs and queues an item status change. Items entering COOKING
// also produce a kitchen ticket.
func (s *Service) recordItem(ctx context.Context, tx store.Store, fx *effects, item models.OrderItem, from models.OrderItemStatus, changedBy string) error {
	id := item.ID
	entry := &models.StatusLogEntry{
		OrderID:     item.OrderID,
		OrderItemID: &id,
		Status:      string(item.Status),
		ChangedBy:   changedBy,
		ChangedAt:   s.now().UTC(),
	}
	if err := tx.AppendStatusLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to append status log: %w", err)
	}
	fx.updates = append(fx.updates, models.NewItemStatusMessage(&item, fx.tableNumber, from, item.Status, changedBy))
	if item.Status == models.ItemCooking {
		fx.cooking = append(fx.cooking, item)
	}
	return nil
}

// release publishes events and registers timers once the transaction is committed.
// Failures are logged; the state change already happened.
func (s *Service) release(ctx context.Context, fx *effects) {
	requestID := logger.RequestIDFromContext(ctx)

	for _, msg := range fx.updates {
		if err := s.notifier.PublishStatusUpdate(ctx, msg); err != nil {
			s.logger.Error("status_update_publish_failed", "Failed to publish status update", requestID, err, map[string]interface{}{
				"order_id":   msg.OrderID,
				"entity":     msg.Entity,
				"new_status": msg.NewStatus,
			})
		}
	}

	for _, item := range fx.cooking {
		ticket := &models.KitchenTicket{
			OrderID:      item.OrderID,
			OrderItemID:  item.ID,
			TableNumber:  fx.tableNumber,
			MenuItemID:   item.MenuItemID,
			MenuItemName: item.MenuItemName,
			Quantity:     item.Quantity,
			Note:         item.Note,
			SentAt:       s.now().UTC(),
		}
		if menuItem, err := s.menu.FindMenuItem(ctx, item.MenuItemID); err == nil {
			ticket.KitchenType = menuItem.KitchenType
		}
		if err := s.notifier.PublishKitchenTicket(ctx, ticket); err != nil {
			s.logger.Error("kitchen_ticket_publish_failed", "Failed to publish kitchen ticket", requestID, err, map[string]interface{}{
				"order_id":      item.OrderID,
				"order_item_id": item.ID,
			})
		}
	}

	for _, t := range fx.timers {
		if err := s.scheduler.Schedule(t.name, s.opts.AutoAdvanceDelay, t.action); err != nil {
			s.logger.Error("schedule_failed", "Failed to schedule deferred transition", requestID, err, map[string]interface{}{
				"task": t.name,
			})
		}
	}
}

// loadOrder maps store lookups to engine errors
func loadOrder(ctx context.Context, st store.OrderStore, op string, id int64) (*models.Order, error) {
	o, err := st.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.OrderNotFound(op, id)
		}
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return o, nil
}

func loadItem(ctx context.Context, st store.OrderItemStore, op string, id int64) (*models.OrderItem, error) {
	item, err := st.GetOrderItem(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.OrderItemNotFound(op, id)
		}
		return nil, fmt.Errorf("failed to load order item %d: %w", id, err)
	}
	return item, nil
}

// resolveMenuItem looks the item up and rejects unavailable ones
func (s *Service) resolveMenuItem(ctx context.Context, op string, id int64) (*models.MenuItem, error) {
	m, err := s.menu.FindMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsAvailable {
		return nil, apperror.InvalidOperation(op, "menu item %s is not available", m.Name)
	}
	return m, nil
}

// recalculateTotal stores the sum of the order's line totals
func recalculateTotal(ctx context.Context, tx store.Store, o *models.Order) error {
	items, err := tx.FindItemsByOrder(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	total := models.CalculateTotalAmount(items)
	if err := tx.UpdateOrderTotal(ctx, o.ID, total); err != nil {
		return fmt.Errorf("failed to update order total: %w", err)
	}
	o.TotalAmount = total
	return nil
}
