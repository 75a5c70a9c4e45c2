package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of store.Store
type Store struct {
	db *DB
	q  querier
	tx pgx.Tx
}

var _ store.Store = (*Store)(nil)

// NewStore creates a store over the pool
func NewStore(db *DB) *Store {
	return &Store{db: db, q: db.Pool}
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// translate maps driver errors onto the store sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, store.ErrConflict)
	}
	return err
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	return d, nil
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Orders

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o     models.Order
		total string
	)
	if err := row.Scan(&o.ID, &o.TableID, &o.TableNumber, &o.WaiterID, &o.OrderTime, &o.Status,
		&o.IsPaid, &total, &o.NeedAssistance); err != nil {
		return nil, err
	}
	amount, err := parseMoney(total)
	if err != nil {
		return nil, err
	}
	o.TotalAmount = amount
	return &o, nil
}

func (s *Store) queryOrders(ctx context.Context, sql string, args ...any) ([]models.Order, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.OrderTime.IsZero() {
		o.OrderTime = time.Now().UTC()
	}
	err := s.q.QueryRow(ctx, InsertOrderSQL,
		o.TableID, o.WaiterID, o.OrderTime, string(o.Status), o.IsPaid, o.TotalAmount.String(), o.NeedAssistance,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", translate(err))
	}

	if o.TableNumber == "" {
		if t, err := s.GetTable(ctx, o.TableID); err == nil {
			o.TableNumber = t.TableNumber
		}
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(s.q.QueryRow(ctx, GetOrderByIDSQL, id))
	if err != nil {
		return nil, translate(err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.queryOrders(ctx, ListOrdersSQL)
}

func (s *Store) ListOrdersByTable(ctx context.Context, tableID int64) ([]models.Order, error) {
	return s.queryOrders(ctx, ListOrdersByTableSQL, tableID)
}

func (s *Store) FindOrdersByStatusIn(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	return s.queryOrders(ctx, FindOrdersByStatusInSQL, statusStrings(statuses))
}

func (s *Store) FindOrdersByTableAndStatusIn(ctx context.Context, tableID int64, statuses []models.OrderStatus) ([]models.Order, error) {
	return s.queryOrders(ctx, FindOrdersByTableAndStatusInSQL, tableID, statusStrings(statuses))
}

// exists distinguishes "no row matched the precondition" from "no row at all"
func (s *Store) exists(ctx context.Context, sql string, id int64) error {
	var ok bool
	if err := s.q.QueryRow(ctx, sql, id).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) compareAndSet(ctx context.Context, casSQL, existsSQL string, id int64, from, to string) (bool, error) {
	tag, err := s.q.Exec(ctx, casSQL, to, id, from)
	if err != nil {
		return false, translate(err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if err := s.exists(ctx, existsSQL, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) CompareAndSetOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	return s.compareAndSet(ctx, CompareAndSetOrderStatusSQL, OrderExistsSQL, id, string(from), string(to))
}

func (s *Store) MarkOrderPaid(ctx context.Context, id int64) (bool, error) {
	tag, err := s.q.Exec(ctx, MarkOrderPaidSQL, id)
	if err != nil {
		return false, translate(err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if err := s.exists(ctx, OrderExistsSQL, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	return s.execOne(ctx, UpdateOrderTotalSQL, total.String(), id)
}

func (s *Store) SetNeedAssistance(ctx context.Context, id int64, flag bool) error {
	return s.execOne(ctx, SetNeedAssistanceSQL, flag, id)
}

// Order items

func scanOrderItem(row pgx.Row) (*models.OrderItem, error) {
	var (
		item  models.OrderItem
		price string
	)
	if err := row.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.MenuItemName, &item.Quantity,
		&price, &item.Note, &item.Status, &item.OrderAt); err != nil {
		return nil, err
	}
	amount, err := parseMoney(price)
	if err != nil {
		return nil, err
	}
	item.Price = amount
	return &item, nil
}

func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if item.OrderAt.IsZero() {
		item.OrderAt = time.Now().UTC()
	}
	err := s.q.QueryRow(ctx, InsertOrderItemSQL,
		item.OrderID, item.MenuItemID, item.MenuItemName, item.Quantity, item.Price.String(),
		item.Note, string(item.Status), item.OrderAt,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", translate(err))
	}
	return nil
}

func (s *Store) GetOrderItem(ctx context.Context, id int64) (*models.OrderItem, error) {
	item, err := scanOrderItem(s.q.QueryRow(ctx, GetOrderItemSQL, id))
	if err != nil {
		return nil, translate(err)
	}
	return item, nil
}

func (s *Store) FindItemsByOrder(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := s.q.Query(ctx, FindItemsByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) DeleteOrderItem(ctx context.Context, id int64) error {
	return s.execOne(ctx, DeleteOrderItemSQL, id)
}

func (s *Store) UpdateOrderItemStatus(ctx context.Context, id int64, status models.OrderItemStatus) error {
	return s.execOne(ctx, UpdateOrderItemStatusSQL, string(status), id)
}

func (s *Store) CompareAndSetItemStatus(ctx context.Context, id int64, from, to models.OrderItemStatus) (bool, error) {
	return s.compareAndSet(ctx, CompareAndSetItemStatusSQL, ItemExistsSQL, id, string(from), string(to))
}

func (s *Store) AdvanceItemsByStatus(ctx context.Context, orderID int64, from, to models.OrderItemStatus) ([]int64, error) {
	rows, err := s.q.Query(ctx, AdvanceItemsByStatusSQL, string(to), orderID, string(from))
	if err != nil {
		return nil, fmt.Errorf("failed to advance order items: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect advanced items: %w", err)
	}
	return ids, nil
}

// Payments

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var (
		p      models.Payment
		amount string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &amount, &p.PaymentTime, &p.PaymentMethod, &p.ReceiptNumber); err != nil {
		return nil, err
	}
	d, err := parseMoney(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = d
	return &p, nil
}

func (s *Store) queryPayments(ctx context.Context, sql string, args ...any) ([]models.Payment, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.PaymentTime.IsZero() {
		p.PaymentTime = time.Now().UTC()
	}
	err := s.q.QueryRow(ctx, InsertPaymentSQL,
		p.OrderID, p.Amount.String(), p.PaymentTime, string(p.PaymentMethod), p.ReceiptNumber,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", translate(err))
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(s.q.QueryRow(ctx, GetPaymentSQL, id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) FindPaymentByOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	p, err := scanPayment(s.q.QueryRow(ctx, FindPaymentByOrderSQL, orderID))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return s.queryPayments(ctx, ListPaymentsSQL)
}

func (s *Store) FindPaymentsByTimeRange(ctx context.Context, start, end time.Time) ([]models.Payment, error) {
	return s.queryPayments(ctx, FindPaymentsByTimeRangeSQL, start, end)
}

// Tables

func scanTable(row pgx.Row) (*models.Table, error) {
	var t models.Table
	if err := row.Scan(&t.ID, &t.TableNumber, &t.Zone, &t.Capacity, &t.Status,
		&t.CurrentWaiterID, &t.OccupiedAt, &t.IsActive); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	t, err := scanTable(s.q.QueryRow(ctx, GetTableSQL, id))
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

func (s *Store) FindTableByNumber(ctx context.Context, number string) (*models.Table, error) {
	t, err := scanTable(s.q.QueryRow(ctx, FindTableByNumberSQL, number))
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

func (s *Store) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := s.q.Query(ctx, ListTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, *t)
	}
	return tables, rows.Err()
}

func (s *Store) CreateTable(ctx context.Context, t *models.Table) error {
	err := s.q.QueryRow(ctx, InsertTableSQL,
		t.TableNumber, t.Zone, t.Capacity, string(t.Status), t.CurrentWaiterID, t.OccupiedAt, t.IsActive,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to insert table: %w", translate(err))
	}
	return nil
}

func (s *Store) UpdateTable(ctx context.Context, t *models.Table) error {
	return s.execOne(ctx, UpdateTableSQL,
		t.TableNumber, t.Zone, t.Capacity, string(t.Status), t.CurrentWaiterID, t.OccupiedAt, t.IsActive, t.ID)
}

// Catalog and users

func (s *Store) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var (
		m     models.MenuItem
		price string
	)
	err := s.q.QueryRow(ctx, GetMenuItemSQL, id).Scan(&m.ID, &m.Name, &m.Category, &price, &m.IsAvailable, &m.KitchenType)
	if err != nil {
		return nil, translate(err)
	}
	if m.Price, err = parseMoney(price); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.q.QueryRow(ctx, GetUserSQL, id).Scan(&u.ID, &u.Name, &u.Role); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Status log

func (s *Store) AppendStatusLog(ctx context.Context, entry *models.StatusLogEntry) error {
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx, InsertOrderStatusLogSQL,
		entry.OrderID, entry.OrderItemID, entry.Status, entry.ChangedBy, entry.ChangedAt, entry.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", translate(err))
	}
	return nil
}

func (s *Store) ListStatusLog(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error) {
	rows, err := s.q.Query(ctx, GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []models.StatusLogEntry
	for rows.Next() {
		var e models.StatusLogEntry
		if err := rows.Scan(&e.OrderID, &e.OrderItemID, &e.Status, &e.ChangedBy, &e.ChangedAt, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		history = append(history, e)
	}
	return history, rows.Err()
}
