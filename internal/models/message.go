package models

import (
	"fmt"
	"time"
)

// Entity names used in status update messages
const (
	EntityOrder     = "order"
	EntityOrderItem = "order_item"
	EntityPayment   = "payment"
)

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	Entity      string    `json:"entity"`
	OrderID     int64     `json:"order_id"`
	OrderItemID *int64    `json:"order_item_id,omitempty"`
	TableNumber string    `json:"table_number,omitempty"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	ChangedBy   string    `json:"changed_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// KitchenTicket is sent to kitchen stations when an item starts cooking
type KitchenTicket struct {
	OrderID      int64       `json:"order_id"`
	OrderItemID  int64       `json:"order_item_id"`
	TableNumber  string      `json:"table_number"`
	MenuItemID   int64       `json:"menu_item_id"`
	MenuItemName string      `json:"menu_item_name"`
	Quantity     int         `json:"quantity"`
	Note         string      `json:"note,omitempty"`
	KitchenType  KitchenType `json:"kitchen_type"`
	SentAt       time.Time   `json:"sent_at"`
}

// NewOrderStatusMessage creates a StatusUpdateMessage for an order transition
func NewOrderStatusMessage(order *Order, oldStatus, newStatus, changedBy string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		Entity:      EntityOrder,
		OrderID:     order.ID,
		TableNumber: order.TableNumber,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		ChangedBy:   changedBy,
		Timestamp:   time.Now().UTC(),
	}
}

// NewItemStatusMessage creates a StatusUpdateMessage for an order item transition
func NewItemStatusMessage(item *OrderItem, tableNumber string, oldStatus, newStatus OrderItemStatus, changedBy string) *StatusUpdateMessage {
	id := item.ID
	return &StatusUpdateMessage{
		Entity:      EntityOrderItem,
		OrderID:     item.OrderID,
		OrderItemID: &id,
		TableNumber: tableNumber,
		OldStatus:   string(oldStatus),
		NewStatus:   string(newStatus),
		ChangedBy:   changedBy,
		Timestamp:   time.Now().UTC(),
	}
}

// KitchenRoutingKey generates a routing key for kitchen tickets
func KitchenRoutingKey(kind KitchenType) string {
	if kind == "" {
		kind = HotKitchen
	}
	return fmt.Sprintf("kitchen.%s", kind)
}
