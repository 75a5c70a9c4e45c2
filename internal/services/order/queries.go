package order

import (
	"context"
	"errors"
	"fmt"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

// GetOrder returns the order projection
func (s *Service) GetOrder(ctx context.Context, id int64) (*models.OrderResponse, error) {
	o, err := loadOrder(ctx, s.store, "order.GetOrder", id)
	if err != nil {
		return nil, err
	}
	return s.ToResponse(ctx, o)
}

func (s *Service) ListOrders(ctx context.Context) ([]models.OrderResponse, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.toResponses(ctx, orders)
}

// ListActiveOrders returns every PENDING or SERVING order
func (s *Service) ListActiveOrders(ctx context.Context) ([]models.OrderResponse, error) {
	orders, err := s.store.FindOrdersByStatusIn(ctx, models.ActiveOrderStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list active orders: %w", err)
	}
	return s.toResponses(ctx, orders)
}

func (s *Service) ListOrdersByTable(ctx context.Context, tableID int64) ([]models.OrderResponse, error) {
	if _, err := s.store.GetTable(ctx, tableID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.TableNotFound("order.ListOrdersByTable", fmt.Sprint(tableID))
		}
		return nil, fmt.Errorf("failed to load table: %w", err)
	}
	orders, err := s.store.ListOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list table orders: %w", err)
	}
	return s.toResponses(ctx, orders)
}

// GetCurrentOrderByTableNumber returns the table's active order, or nil if it has none
func (s *Service) GetCurrentOrderByTableNumber(ctx context.Context, tableNumber string) (*models.OrderResponse, error) {
	o, err := s.activeOrder(ctx, "order.GetCurrentOrderByTableNumber", tableNumber)
	if err != nil || o == nil {
		return nil, err
	}
	return s.ToResponse(ctx, o)
}

// OrderHistory returns the order's status log, oldest first
func (s *Service) OrderHistory(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error) {
	if _, err := loadOrder(ctx, s.store, "order.OrderHistory", orderID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListStatusLog(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status log: %w", err)
	}
	if entries == nil {
		entries = []models.StatusLogEntry{}
	}
	return entries, nil
}

// ToResponse projects an order with its items and waiter name
func (s *Service) ToResponse(ctx context.Context, o *models.Order) (*models.OrderResponse, error) {
	items, err := s.store.FindItemsByOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	resp := &models.OrderResponse{
		ID:             o.ID,
		TableNumber:    o.TableNumber,
		OrderTime:      o.OrderTime,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount,
		IsPaid:         o.IsPaid,
		NeedAssistance: o.NeedAssistance,
		WaiterID:       o.WaiterID,
		Items:          make([]models.OrderItemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, models.NewOrderItemResponse(item))
	}

	if o.WaiterID != nil {
		user, err := s.store.GetUser(ctx, *o.WaiterID)
		switch {
		case err == nil:
			resp.WaiterName = user.Name
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to load waiter: %w", err)
		}
	}
	return resp, nil
}

func (s *Service) toResponses(ctx context.Context, orders []models.Order) ([]models.OrderResponse, error) {
	out := make([]models.OrderResponse, 0, len(orders))
	for i := range orders {
		resp, err := s.ToResponse(ctx, &orders[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}
