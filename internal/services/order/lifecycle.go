package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/keylock"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/services/order/internal/validation"
	"restaurant-orders/internal/store"
)

// CreateOrGetActiveOrder opens an order on the table, or appends the
// requested items to the table's current one
func (s *Service) CreateOrGetActiveOrder(ctx context.Context, tableNumber string, req *models.CreateOrderRequest) (*models.OrderResponse, error) {
	const op = "order.CreateOrGetActiveOrder"
	requestID := logger.RequestIDFromContext(ctx)

	if err := validation.ValidateTableNumber(tableNumber); err != nil {
		return nil, apperror.Validation(op, err)
	}
	if err := validation.ValidateCreateOrderRequest(req); err != nil {
		return nil, apperror.Validation(op, err)
	}

	table, err := s.store.FindTableByNumber(ctx, tableNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.TableNotFound(op, tableNumber)
		}
		return nil, fmt.Errorf("failed to load table %s: %w", tableNumber, err)
	}

	menuItems := make([]*models.MenuItem, len(req.Items))
	for i, r := range req.Items {
		if menuItems[i], err = s.resolveMenuItem(ctx, op, r.MenuItemID); err != nil {
			return nil, err
		}
	}

	unlockTable := s.locks.Lock(keylock.TableKey(table.TableNumber))
	defer unlockTable()

	active, err := s.store.FindOrdersByTableAndStatusIn(ctx, table.ID, models.ActiveOrderStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to find active order: %w", err)
	}
	if len(active) > 0 {
		unlockOrder := s.locks.Lock(keylock.OrderKey(active[0].ID))
		defer unlockOrder()
	}

	fx := &effects{tableNumber: table.TableNumber}
	var (
		order   *models.Order
		created bool
	)
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if len(active) > 0 {
			o, err := loadOrder(ctx, tx, op, active[0].ID)
			if err != nil {
				return err
			}
			// A stale lookup falls through to a fresh order.
			if o.Status.IsActive() {
				if o.IsPaid {
					return apperror.OrderAlreadyPaid(op, o.ID)
				}
				order = o
			}
		}
		if order == nil {
			o, err := s.openOrder(ctx, tx, fx, op, table.ID)
			if err != nil {
				return err
			}
			order, created = o, true
		}

		for i, r := range req.Items {
			note := r.Note
			if !created {
				note = s.addedNote(note)
			}
			if _, err := s.insertItem(ctx, tx, fx, order, menuItems[i], r.Quantity, note); err != nil {
				return err
			}
		}
		return recalculateTotal(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	if created {
		fx.schedule(fmt.Sprintf("order-%d-serving", order.ID), s.autoAdvanceOrder(order.ID))
	}
	s.release(ctx, fx)

	s.logger.Info("order_items_placed", fmt.Sprintf("Placed %d item(s) on table %s", len(req.Items), table.TableNumber), requestID, map[string]interface{}{
		"order_id":     order.ID,
		"table_number": table.TableNumber,
		"new_order":    created,
		"total_amount": order.TotalAmount.String(),
	})
	return s.ToResponse(ctx, order)
}

// openOrder creates a PENDING order on the table and marks the table occupied
func (s *Service) openOrder(ctx context.Context, tx store.Store, fx *effects, op string, tableID int64) (*models.Order, error) {
	table, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload table: %w", err)
	}

	now := s.now().UTC()
	o := &models.Order{
		TableID:     table.ID,
		TableNumber: table.TableNumber,
		WaiterID:    table.CurrentWaiterID,
		OrderTime:   now,
		Status:      models.OrderPending,
		TotalAmount: decimal.Zero,
	}
	if err := tx.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperror.InvalidOperation(op, "table %s already has an active order", table.TableNumber)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	table.Status = models.TableOccupied
	if table.OccupiedAt == nil {
		table.OccupiedAt = &now
	}
	if err := tx.UpdateTable(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to occupy table: %w", err)
	}

	if err := s.recordOrder(ctx, tx, fx, o, "", models.OrderPending, ChangedByStaff, "Order created"); err != nil {
		return nil, err
	}
	return o, nil
}

// insertItem snapshots the menu price into a new PENDING item and queues its cooking timer
func (s *Service) insertItem(ctx context.Context, tx store.Store, fx *effects, o *models.Order, m *models.MenuItem, quantity int, note string) (*models.OrderItem, error) {
	item := &models.OrderItem{
		OrderID:      o.ID,
		MenuItemID:   m.ID,
		MenuItemName: m.Name,
		Quantity:     quantity,
		Price:        m.Price,
		Note:         note,
		Status:       models.ItemPending,
		OrderAt:      s.now().UTC(),
	}
	if err := tx.CreateOrderItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create order item: %w", err)
	}
	if err := s.recordItem(ctx, tx, fx, *item, "", ChangedByStaff); err != nil {
		return nil, err
	}
	fx.schedule(fmt.Sprintf("order-item-%d-cooking", item.ID), s.autoAdvanceItem(o.ID, item.ID))
	return item, nil
}

// AddItemToOrder appends one item to a PENDING or SERVING unpaid order
func (s *Service) AddItemToOrder(ctx context.Context, orderID, menuItemID int64, quantity int, note string) (*models.OrderItem, error) {
	const op = "order.AddItemToOrder"

	if err := validation.ValidateItem(menuItemID, quantity, note); err != nil {
		return nil, apperror.Validation(op, err)
	}
	if _, err := loadOrder(ctx, s.store, op, orderID); err != nil {
		return nil, err
	}
	menuItem, err := s.resolveMenuItem(ctx, op, menuItemID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.OrderKey(orderID))
	defer unlock()

	fx := &effects{}
	var item *models.OrderItem
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		o, err := loadOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}
		if o.IsPaid {
			return apperror.OrderAlreadyPaid(op, o.ID)
		}
		if !o.Status.IsActive() {
			return apperror.InvalidOperation(op, "cannot add items to a %s order", o.Status)
		}
		fx.tableNumber = o.TableNumber

		if item, err = s.insertItem(ctx, tx, fx, o, menuItem, quantity, note); err != nil {
			return err
		}
		return recalculateTotal(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, fx)

	s.logger.Info("order_item_added", fmt.Sprintf("Added %s x%d to order %d", menuItem.Name, quantity, orderID), logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_id":      orderID,
		"order_item_id": item.ID,
	})
	return item, nil
}

// RemoveItemFromOrder deletes an item the kitchen has not started
func (s *Service) RemoveItemFromOrder(ctx context.Context, orderItemID int64) (*models.Order, error) {
	const op = "order.RemoveItemFromOrder"

	existing, err := loadItem(ctx, s.store, op, orderItemID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.OrderKey(existing.OrderID))
	defer unlock()

	var order *models.Order
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		item, err := loadItem(ctx, tx, op, orderItemID)
		if err != nil {
			return err
		}
		o, err := loadOrder(ctx, tx, op, item.OrderID)
		if err != nil {
			return err
		}
		if o.IsPaid {
			return apperror.OrderAlreadyPaid(op, o.ID)
		}
		if item.Status != models.ItemPending {
			return apperror.InvalidOperation(op, "order item %d is %s and can no longer be removed", item.ID, item.Status)
		}

		if err := tx.DeleteOrderItem(ctx, item.ID); err != nil {
			return fmt.Errorf("failed to delete order item: %w", err)
		}
		if err := recalculateTotal(ctx, tx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_item_removed", fmt.Sprintf("Removed item %d from order %d", orderItemID, order.ID), logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount.String(),
	})
	return order, nil
}

// UpdateOrderItemStatus overwrites the item's status. Callers are trusted;
// no transition graph is enforced here.
func (s *Service) UpdateOrderItemStatus(ctx context.Context, orderItemID int64, status models.OrderItemStatus) (*models.OrderItem, error) {
	const op = "order.UpdateOrderItemStatus"

	existing, err := loadItem(ctx, s.store, op, orderItemID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.OrderKey(existing.OrderID))
	defer unlock()

	fx := &effects{}
	var item *models.OrderItem
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		current, err := loadItem(ctx, tx, op, orderItemID)
		if err != nil {
			return err
		}
		item = current
		if current.Status == status {
			return nil
		}

		o, err := loadOrder(ctx, tx, op, current.OrderID)
		if err != nil {
			return err
		}
		fx.tableNumber = o.TableNumber

		if err := tx.UpdateOrderItemStatus(ctx, current.ID, status); err != nil {
			return fmt.Errorf("failed to update order item status: %w", err)
		}
		from := current.Status
		item.Status = status
		return s.recordItem(ctx, tx, fx, *item, from, ChangedByStaff)
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, fx)
	return item, nil
}

// UpdateOrderStatus moves the order along PENDING -> SERVING -> PAID, or
// cancels it. Setting the current status again is a no-op.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	const op = "order.UpdateOrderStatus"

	unlock := s.locks.Lock(keylock.OrderKey(orderID))
	defer unlock()

	current, err := loadOrder(ctx, s.store, op, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == status && status != models.OrderServing {
		return current, nil
	}
	if status == models.OrderCancelled {
		return s.cancelLocked(ctx, orderID)
	}

	fx := &effects{tableNumber: current.TableNumber}
	var order *models.Order
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		o, err := loadOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return apperror.InvalidOperation(op, "order %d is %s and can no longer change status", o.ID, o.Status)
		}

		switch status {
		case models.OrderServing:
			if o.Status == models.OrderServing {
				// Items added after the order started serving still go to the kitchen.
				if err := s.advancePendingItems(ctx, tx, fx, o.ID, ChangedByStaff); err != nil {
					return err
				}
				break
			}
			advanced, err := s.enterService(ctx, tx, fx, o, ChangedByStaff)
			if err != nil {
				return err
			}
			if !advanced {
				return apperror.InvalidOperation(op, "order %d is %s, only a PENDING order can start serving", o.ID, o.Status)
			}
		case models.OrderPaid:
			if err := s.markPaidStatus(ctx, tx, fx, op, o); err != nil {
				return err
			}
		default:
			return apperror.InvalidOperation(op, "order %d cannot move from %s to %s", o.ID, o.Status, status)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, fx)

	s.logger.Info("order_status_updated", fmt.Sprintf("Order %d is now %s", order.ID, order.Status), logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_id": order.ID,
		"status":   string(order.Status),
	})
	return order, nil
}

// enterService moves a PENDING order to SERVING and sends every PENDING item
// to the kitchen. It reports false if the order was not PENDING.
func (s *Service) enterService(ctx context.Context, tx store.Store, fx *effects, o *models.Order, changedBy string) (bool, error) {
	if o.Status != models.OrderPending {
		return false, nil
	}
	ok, err := tx.CompareAndSetOrderStatus(ctx, o.ID, models.OrderPending, models.OrderServing)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return false, nil
	}
	o.Status = models.OrderServing
	if err := s.recordOrder(ctx, tx, fx, o, models.OrderPending, models.OrderServing, changedBy, ""); err != nil {
		return false, err
	}
	if err := s.advancePendingItems(ctx, tx, fx, o.ID, changedBy); err != nil {
		return false, err
	}
	return true, nil
}

// advancePendingItems bulk-moves the order's PENDING items to COOKING
func (s *Service) advancePendingItems(ctx context.Context, tx store.Store, fx *effects, orderID int64, changedBy string) error {
	ids, err := tx.AdvanceItemsByStatus(ctx, orderID, models.ItemPending, models.ItemCooking)
	if err != nil {
		return fmt.Errorf("failed to advance order items: %w", err)
	}
	for _, id := range ids {
		item, err := tx.GetOrderItem(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to reload order item %d: %w", id, err)
		}
		if err := s.recordItem(ctx, tx, fx, *item, models.ItemPending, changedBy); err != nil {
			return err
		}
	}
	return nil
}

// markPaidStatus sets status PAID once the kitchen has nothing outstanding
func (s *Service) markPaidStatus(ctx context.Context, tx store.Store, fx *effects, op string, o *models.Order) error {
	items, err := tx.FindItemsByOrder(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	if outstanding := models.OutstandingItems(items); len(outstanding) > 0 {
		return apperror.InvalidOperation(op, "order %d still has %d item(s) pending or cooking", o.ID, len(outstanding))
	}

	from := o.Status
	ok, err := tx.CompareAndSetOrderStatus(ctx, o.ID, from, models.OrderPaid)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return apperror.InvalidOperation(op, "order %d changed status concurrently", o.ID)
	}
	o.Status = models.OrderPaid
	return s.recordOrder(ctx, tx, fx, o, from, models.OrderPaid, ChangedByStaff, "")
}

// CancelOrder cancels a PENDING unpaid order and all of its items
func (s *Service) CancelOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	unlock := s.locks.Lock(keylock.OrderKey(orderID))
	defer unlock()
	return s.cancelLocked(ctx, orderID)
}

func (s *Service) cancelLocked(ctx context.Context, orderID int64) (*models.Order, error) {
	const op = "order.CancelOrder"

	fx := &effects{}
	var order *models.Order
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		o, err := loadOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}
		if o.Status != models.OrderPending {
			return apperror.InvalidOperation(op, "order %d is %s, only PENDING orders can be cancelled", o.ID, o.Status)
		}
		if o.IsPaid {
			return apperror.OrderAlreadyPaid(op, o.ID)
		}
		fx.tableNumber = o.TableNumber

		items, err := tx.FindItemsByOrder(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}
		for _, item := range items {
			if item.Status == models.ItemCancelled {
				continue
			}
			if err := tx.UpdateOrderItemStatus(ctx, item.ID, models.ItemCancelled); err != nil {
				return fmt.Errorf("failed to cancel order item %d: %w", item.ID, err)
			}
			from := item.Status
			item.Status = models.ItemCancelled
			if err := s.recordItem(ctx, tx, fx, item, from, ChangedByStaff); err != nil {
				return err
			}
		}

		ok, err := tx.CompareAndSetOrderStatus(ctx, o.ID, models.OrderPending, models.OrderCancelled)
		if err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		if !ok {
			return apperror.InvalidOperation(op, "order %d changed status concurrently", o.ID)
		}
		o.Status = models.OrderCancelled
		order = o
		return s.recordOrder(ctx, tx, fx, o, models.OrderPending, models.OrderCancelled, ChangedByStaff, "Order cancelled")
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, fx)

	s.logger.Info("order_cancelled", fmt.Sprintf("Order %d cancelled", order.ID), logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_id":     order.ID,
		"table_number": order.TableNumber,
	})
	return order, nil
}

// RequestAssistance sets or clears the order's staff-call flag
func (s *Service) RequestAssistance(ctx context.Context, orderID int64, flag bool) (*models.Order, error) {
	const op = "order.RequestAssistance"

	unlock := s.locks.Lock(keylock.OrderKey(orderID))
	defer unlock()

	o, err := loadOrder(ctx, s.store, op, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetNeedAssistance(ctx, orderID, flag); err != nil {
		return nil, fmt.Errorf("failed to update assistance flag: %w", err)
	}
	o.NeedAssistance = flag

	s.logger.Info("assistance_requested", fmt.Sprintf("Table %s assistance=%t", o.TableNumber, flag), logger.RequestIDFromContext(ctx), map[string]interface{}{
		"order_id":     o.ID,
		"table_number": o.TableNumber,
	})
	return o, nil
}

// RequestAssistanceByTable sets the flag on the table's current active order
func (s *Service) RequestAssistanceByTable(ctx context.Context, tableNumber string, flag bool) (*models.Order, error) {
	const op = "order.RequestAssistanceByTable"

	active, err := s.activeOrder(ctx, op, tableNumber)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, apperror.NotFound(op, "no active order for table %s", tableNumber)
	}
	return s.RequestAssistance(ctx, active.ID, flag)
}

// activeOrder returns the table's PENDING or SERVING order, or nil
func (s *Service) activeOrder(ctx context.Context, op, tableNumber string) (*models.Order, error) {
	table, err := s.store.FindTableByNumber(ctx, tableNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.TableNotFound(op, tableNumber)
		}
		return nil, fmt.Errorf("failed to load table %s: %w", tableNumber, err)
	}

	orders, err := s.store.FindOrdersByTableAndStatusIn(ctx, table.ID, models.ActiveOrderStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to find active order: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}
