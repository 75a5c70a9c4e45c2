package order

import (
	"context"
	"errors"
	"fmt"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/keylock"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/scheduler"
	"restaurant-orders/internal/store"
)

// autoAdvanceOrder returns the delayed PENDING -> SERVING transition for an
// order. It is a no-op if the order moved on or disappeared in the meantime.
func (s *Service) autoAdvanceOrder(orderID int64) scheduler.Action {
	return func(ctx context.Context) error {
		unlock := s.locks.Lock(keylock.OrderKey(orderID))
		defer unlock()

		fx := &effects{}
		var advanced bool
		err := s.store.WithTx(ctx, func(tx store.Store) error {
			o, err := tx.GetOrder(ctx, orderID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			fx.tableNumber = o.TableNumber
			advanced, err = s.enterService(ctx, tx, fx, o, ChangedByScheduler)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to auto-advance order %d: %w", orderID, err)
		}

		if !advanced {
			s.logger.Debug("auto_advance_skipped", fmt.Sprintf("Order %d is no longer PENDING", orderID), "", map[string]interface{}{
				"order_id": orderID,
			})
			return nil
		}
		s.release(ctx, fx)

		s.logger.Info("order_auto_advanced", fmt.Sprintf("Order %d moved to SERVING", orderID), "", map[string]interface{}{
			"order_id": orderID,
		})
		return nil
	}
}

// autoAdvanceItem returns the delayed PENDING -> COOKING transition for one item
func (s *Service) autoAdvanceItem(orderID, itemID int64) scheduler.Action {
	return func(ctx context.Context) error {
		unlock := s.locks.Lock(keylock.OrderKey(orderID))
		defer unlock()

		fx := &effects{}
		var advanced bool
		err := s.store.WithTx(ctx, func(tx store.Store) error {
			ok, err := tx.CompareAndSetItemStatus(ctx, itemID, models.ItemPending, models.ItemCooking)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil || !ok {
				return err
			}

			item, err := tx.GetOrderItem(ctx, itemID)
			if err != nil {
				return err
			}
			o, err := tx.GetOrder(ctx, orderID)
			if err != nil {
				return fmt.Errorf("failed to load order %d: %w", orderID, err)
			}
			fx.tableNumber = o.TableNumber
			advanced = true
			return s.recordItem(ctx, tx, fx, *item, models.ItemPending, ChangedByScheduler)
		})
		if err != nil {
			return fmt.Errorf("failed to auto-advance order item %d: %w", itemID, err)
		}

		if !advanced {
			s.logger.Debug("auto_advance_skipped", fmt.Sprintf("Order item %d is no longer PENDING", itemID), "", map[string]interface{}{
				"order_id":      orderID,
				"order_item_id": itemID,
			})
			return nil
		}
		s.release(ctx, fx)

		s.logger.Info("order_item_auto_advanced", fmt.Sprintf("Order item %d moved to COOKING", itemID), "", map[string]interface{}{
			"order_id":      orderID,
			"order_item_id": itemID,
		})
		return nil
	}
}

// MarkItemReady moves an item from COOKING to READY on behalf of a kitchen
// station. It reports false when the item is no longer cooking, so a late or
// redelivered ticket never revives a cancelled or served item.
func (s *Service) MarkItemReady(ctx context.Context, orderItemID int64, station string) (bool, error) {
	const op = "order.MarkItemReady"

	existing, err := loadItem(ctx, s.store, op, orderItemID)
	if err != nil {
		return false, err
	}

	unlock := s.locks.Lock(keylock.OrderKey(existing.OrderID))
	defer unlock()

	fx := &effects{}
	var ready bool
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		ok, err := tx.CompareAndSetItemStatus(ctx, orderItemID, models.ItemCooking, models.ItemReady)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.OrderItemNotFound(op, orderItemID)
		}
		if err != nil || !ok {
			return err
		}
		item, err := loadItem(ctx, tx, op, orderItemID)
		if err != nil {
			return err
		}
		o, err := loadOrder(ctx, tx, op, item.OrderID)
		if err != nil {
			return err
		}
		fx.tableNumber = o.TableNumber
		ready = true
		return s.recordItem(ctx, tx, fx, *item, models.ItemCooking, station)
	})
	if err != nil {
		return false, err
	}
	if ready {
		s.release(ctx, fx)
	}
	return ready, nil
}
