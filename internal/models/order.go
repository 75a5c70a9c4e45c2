package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderServing   OrderStatus = "SERVING"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderPaid      OrderStatus = "PAID"
)

// ActiveOrderStatuses are the non-terminal order states; a table has at most one such order
var ActiveOrderStatuses = []OrderStatus{OrderPending, OrderServing}

// IsTerminal reports whether no further mutation is expected
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCancelled || s == OrderPaid
}

// IsActive reports whether the order is still open on its table
func (s OrderStatus) IsActive() bool {
	return s == OrderPending || s == OrderServing
}

// ParseOrderStatus converts a request string into an OrderStatus or fails
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case OrderPending, OrderServing, OrderCancelled, OrderPaid:
		return st, nil
	default:
		return "", fmt.Errorf("status must be one of: PENDING, SERVING, CANCELLED, PAID")
	}
}

// OrderItemStatus represents the kitchen status of a single order line
type OrderItemStatus string

const (
	ItemPending   OrderItemStatus = "PENDING"
	ItemCooking   OrderItemStatus = "COOKING"
	ItemReady     OrderItemStatus = "READY"
	ItemServed    OrderItemStatus = "SERVED"
	ItemCancelled OrderItemStatus = "CANCELLED"
)

// IsOutstanding reports whether the kitchen still has work on the item
func (s OrderItemStatus) IsOutstanding() bool {
	return s == ItemPending || s == ItemCooking
}

// ParseOrderItemStatus converts a request string into an OrderItemStatus or fails
func ParseOrderItemStatus(s string) (OrderItemStatus, error) {
	switch st := OrderItemStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ItemPending, ItemCooking, ItemReady, ItemServed, ItemCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("status must be one of: PENDING, COOKING, READY, SERVED, CANCELLED")
	}
}

// Order is a customer's tab for one dine-in table visit
type Order struct {
	ID             int64           `json:"id" db:"id"`
	TableID        int64           `json:"table_id" db:"table_id"`
	TableNumber    string          `json:"table_number" db:"table_number"`
	WaiterID       *int64          `json:"waiter_id,omitempty" db:"waiter_id"`
	OrderTime      time.Time       `json:"order_time" db:"order_time"`
	Status         OrderStatus     `json:"status" db:"status"`
	IsPaid         bool            `json:"is_paid" db:"is_paid"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	NeedAssistance bool            `json:"need_assistance" db:"need_assistance"`
}

// OrderItem is one line (menu item + quantity) within an order
type OrderItem struct {
	ID           int64           `json:"id" db:"id"`
	OrderID      int64           `json:"order_id" db:"order_id"`
	MenuItemID   int64           `json:"menu_item_id" db:"menu_item_id"`
	MenuItemName string          `json:"menu_item_name" db:"menu_item_name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Note         string          `json:"note" db:"note"`
	Status       OrderItemStatus `json:"status" db:"status"`
	OrderAt      time.Time       `json:"order_at" db:"order_at"`
}

// LineTotal is price × quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CalculateTotalAmount sums the line totals of items
func CalculateTotalAmount(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OutstandingItems returns the items still PENDING or COOKING
func OutstandingItems(items []OrderItem) []OrderItem {
	var out []OrderItem
	for _, item := range items {
		if item.Status.IsOutstanding() {
			out = append(out, item)
		}
	}
	return out
}

// StatusLogEntry is one row of the order status history
type StatusLogEntry struct {
	OrderID     int64     `json:"order_id" db:"order_id"`
	OrderItemID *int64    `json:"order_item_id,omitempty" db:"order_item_id"`
	Status      string    `json:"status" db:"status"`
	ChangedBy   string    `json:"changed_by" db:"changed_by"`
	ChangedAt   time.Time `json:"changed_at" db:"changed_at"`
	Notes       string    `json:"notes,omitempty" db:"notes"`
}

// OrderItemRequest is one requested line of a create or add call
type OrderItemRequest struct {
	MenuItemID int64  `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note"`
}

// CreateOrderRequest represents the request to open or extend a table's order
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// OrderItemResponse is the item-level snapshot returned to clients
type OrderItemResponse struct {
	ID           int64           `json:"id"`
	MenuItemID   int64           `json:"menuItemId"`
	MenuItemName string          `json:"menuItemName"`
	Quantity     int             `json:"quantity"`
	Note         string          `json:"note"`
	Status       OrderItemStatus `json:"status"`
	Price        decimal.Decimal `json:"price"`
	OrderAt      time.Time       `json:"orderAt"`
}

// OrderResponse is the order-level projection returned to clients
type OrderResponse struct {
	ID             int64               `json:"id"`
	TableNumber    string              `json:"tableNumber"`
	OrderTime      time.Time           `json:"orderTime"`
	Status         OrderStatus         `json:"status"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	IsPaid         bool                `json:"isPaid"`
	NeedAssistance bool                `json:"needAssistance"`
	WaiterID       *int64              `json:"waiterId,omitempty"`
	WaiterName     string              `json:"waiterName,omitempty"`
	Items          []OrderItemResponse `json:"items"`
}

// NewOrderItemResponse projects an item
func NewOrderItemResponse(item OrderItem) OrderItemResponse {
	return OrderItemResponse{
		ID:           item.ID,
		MenuItemID:   item.MenuItemID,
		MenuItemName: item.MenuItemName,
		Quantity:     item.Quantity,
		Note:         item.Note,
		Status:       item.Status,
		Price:        item.Price,
		OrderAt:      item.OrderAt,
	}
}
