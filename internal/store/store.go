// Package store declares the record store the order engine, payment recorder
// and table registry persist through. Implementations live in
// internal/database (PostgreSQL) and internal/store/memstore (in-process).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-orders/internal/models"
)

var (
	// ErrNotFound is returned when a lookup by id or key matches nothing
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write
	ErrConflict = errors.New("record conflicts with an existing one")
)

// OrderStore persists orders
type OrderStore interface {
	// CreateOrder inserts o and fills in its ID and, if zero, its OrderTime
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByTable(ctx context.Context, tableID int64) ([]models.Order, error)
	FindOrdersByStatusIn(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error)
	FindOrdersByTableAndStatusIn(ctx context.Context, tableID int64, statuses []models.OrderStatus) ([]models.Order, error)

	// CompareAndSetOrderStatus moves the order to `to` only if it is currently `from`
	CompareAndSetOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error)
	// MarkOrderPaid flips is_paid from false to true; it reports false if the order was already paid
	MarkOrderPaid(ctx context.Context, id int64) (bool, error)
	UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error
	SetNeedAssistance(ctx context.Context, id int64, flag bool) error
}

// OrderItemStore persists order lines
type OrderItemStore interface {
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderItem(ctx context.Context, id int64) (*models.OrderItem, error)
	FindItemsByOrder(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id int64) error
	UpdateOrderItemStatus(ctx context.Context, id int64, status models.OrderItemStatus) error
	CompareAndSetItemStatus(ctx context.Context, id int64, from, to models.OrderItemStatus) (bool, error)
	// AdvanceItemsByStatus moves every item of the order in status `from` to `to`
	// and returns the ids it moved
	AdvanceItemsByStatus(ctx context.Context, orderID int64, from, to models.OrderItemStatus) ([]int64, error)
}

// PaymentStore persists payments. CreatePayment returns ErrConflict if the
// order already has a payment.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	FindPaymentByOrder(ctx context.Context, orderID int64) (*models.Payment, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
	FindPaymentsByTimeRange(ctx context.Context, start, end time.Time) ([]models.Payment, error)
}

// TableStore persists dining tables. CreateTable returns ErrConflict on a duplicate number.
type TableStore interface {
	GetTable(ctx context.Context, id int64) (*models.Table, error)
	FindTableByNumber(ctx context.Context, number string) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	CreateTable(ctx context.Context, t *models.Table) error
	UpdateTable(ctx context.Context, t *models.Table) error
}

// CatalogStore reads menu items
type CatalogStore interface {
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
}

// UserStore reads staff members
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// StatusLogStore keeps the order status history
type StatusLogStore interface {
	AppendStatusLog(ctx context.Context, entry *models.StatusLogEntry) error
	ListStatusLog(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error)
}

// Store is the full record store. WithTx runs fn against a transactional
// view; if fn returns an error nothing it wrote is kept.
type Store interface {
	OrderStore
	OrderItemStore
	PaymentStore
	TableStore
	CatalogStore
	UserStore
	StatusLogStore

	WithTx(ctx context.Context, fn func(tx Store) error) error
}
