// Package memstore is an in-process implementation of store.Store. It backs
// the test suites and the --store memory mode of the order service.
//
// Transactions work on a copy of the data and swap it in on success, so a
// failed transaction leaves nothing behind. Writers are serialized.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

type state struct {
	orders    map[int64]models.Order
	items     map[int64]models.OrderItem
	payments  map[int64]models.Payment
	tables    map[int64]models.Table
	menu      map[int64]models.MenuItem
	users     map[int64]models.User
	statusLog []models.StatusLogEntry
	nextID    map[string]int64
}

func newState() *state {
	return &state{
		orders:   make(map[int64]models.Order),
		items:    make(map[int64]models.OrderItem),
		payments: make(map[int64]models.Payment),
		tables:   make(map[int64]models.Table),
		menu:     make(map[int64]models.MenuItem),
		users:    make(map[int64]models.User),
		nextID:   make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	c.statusLog = append([]models.StatusLogEntry(nil), s.statusLog...)
	return c
}

func (s *state) id(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

// Store is an in-memory store.Store
type Store struct {
	writeMu *sync.Mutex
	mu      *sync.RWMutex
	data    *state
	inTx    bool
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		writeMu: &sync.Mutex{},
		mu:      &sync.RWMutex{},
		data:    newState(),
		now:     time.Now,
	}
}

// WithTx runs fn on a private copy and publishes it if fn succeeds
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &Store{
		writeMu: s.writeMu,
		mu:      &sync.RWMutex{},
		data:    snapshot,
		inTx:    true,
		now:     s.now,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	if !s.inTx {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Orders

func (s *Store) withTableNumber(d *state, o models.Order) models.Order {
	if t, ok := d.tables[o.TableID]; ok {
		o.TableNumber = t.TableNumber
	}
	return o
}

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.write(func(d *state) error {
		if _, ok := d.tables[o.TableID]; !ok {
			return fmt.Errorf("failed to create order: table %d: %w", o.TableID, store.ErrNotFound)
		}
		if o.Status.IsActive() {
			for _, existing := range d.orders {
				if existing.TableID == o.TableID && existing.Status.IsActive() {
					return fmt.Errorf("failed to create order: table %d already has an active order: %w", o.TableID, store.ErrConflict)
				}
			}
		}
		o.ID = d.id("orders")
		if o.OrderTime.IsZero() {
			o.OrderTime = s.now().UTC()
		}
		*o = s.withTableNumber(d, *o)
		d.orders[o.ID] = *o
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var (
		o  models.Order
		ok bool
	)
	s.read(func(d *state) {
		o, ok = d.orders[id]
		o = s.withTableNumber(d, o)
	})
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (s *Store) filterOrders(keep func(models.Order) bool) []models.Order {
	var out []models.Order
	s.read(func(d *state) {
		for _, o := range d.orders {
			if keep(o) {
				out = append(out, s.withTableNumber(d, o))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.filterOrders(func(models.Order) bool { return true }), nil
}

func (s *Store) ListOrdersByTable(ctx context.Context, tableID int64) ([]models.Order, error) {
	return s.filterOrders(func(o models.Order) bool { return o.TableID == tableID }), nil
}

func (s *Store) FindOrdersByStatusIn(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	return s.filterOrders(func(o models.Order) bool { return containsStatus(statuses, o.Status) }), nil
}

func (s *Store) FindOrdersByTableAndStatusIn(ctx context.Context, tableID int64, statuses []models.OrderStatus) ([]models.Order, error) {
	return s.filterOrders(func(o models.Order) bool {
		return o.TableID == tableID && containsStatus(statuses, o.Status)
	}), nil
}

func containsStatus(statuses []models.OrderStatus, st models.OrderStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s *Store) CompareAndSetOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	var swapped bool
	err := s.write(func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return store.ErrNotFound
		}
		if o.Status != from {
			return nil
		}
		o.Status = to
		d.orders[id] = o
		swapped = true
		return nil
	})
	return swapped, err
}

func (s *Store) MarkOrderPaid(ctx context.Context, id int64) (bool, error) {
	var swapped bool
	err := s.write(func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return store.ErrNotFound
		}
		if o.IsPaid {
			return nil
		}
		o.IsPaid = true
		d.orders[id] = o
		swapped = true
		return nil
	})
	return swapped, err
}

func (s *Store) UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	return s.write(func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return store.ErrNotFound
		}
		o.TotalAmount = total
		d.orders[id] = o
		return nil
	})
}

func (s *Store) SetNeedAssistance(ctx context.Context, id int64, flag bool) error {
	return s.write(func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return store.ErrNotFound
		}
		o.NeedAssistance = flag
		d.orders[id] = o
		return nil
	})
}

// Order items

func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return s.write(func(d *state) error {
		if _, ok := d.orders[item.OrderID]; !ok {
			return fmt.Errorf("failed to create order item: order %d: %w", item.OrderID, store.ErrNotFound)
		}
		item.ID = d.id("order_items")
		if item.OrderAt.IsZero() {
			item.OrderAt = s.now().UTC()
		}
		d.items[item.ID] = *item
		return nil
	})
}

func (s *Store) GetOrderItem(ctx context.Context, id int64) (*models.OrderItem, error) {
	var (
		item models.OrderItem
		ok   bool
	)
	s.read(func(d *state) { item, ok = d.items[id] })
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) FindItemsByOrder(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var out []models.OrderItem
	s.read(func(d *state) {
		for _, item := range d.items {
			if item.OrderID == orderID {
				out = append(out, item)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteOrderItem(ctx context.Context, id int64) error {
	return s.write(func(d *state) error {
		if _, ok := d.items[id]; !ok {
			return store.ErrNotFound
		}
		delete(d.items, id)
		return nil
	})
}

func (s *Store) UpdateOrderItemStatus(ctx context.Context, id int64, status models.OrderItemStatus) error {
	return s.write(func(d *state) error {
		item, ok := d.items[id]
		if !ok {
			return store.ErrNotFound
		}
		item.Status = status
		d.items[id] = item
		return nil
	})
}

func (s *Store) CompareAndSetItemStatus(ctx context.Context, id int64, from, to models.OrderItemStatus) (bool, error) {
	var swapped bool
	err := s.write(func(d *state) error {
		item, ok := d.items[id]
		if !ok {
			return store.ErrNotFound
		}
		if item.Status != from {
			return nil
		}
		item.Status = to
		d.items[id] = item
		swapped = true
		return nil
	})
	return swapped, err
}

func (s *Store) AdvanceItemsByStatus(ctx context.Context, orderID int64, from, to models.OrderItemStatus) ([]int64, error) {
	var ids []int64
	err := s.write(func(d *state) error {
		for id, item := range d.items {
			if item.OrderID == orderID && item.Status == from {
				item.Status = to
				d.items[id] = item
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}

// Payments

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.write(func(d *state) error {
		if _, ok := d.orders[p.OrderID]; !ok {
			return fmt.Errorf("failed to create payment: order %d: %w", p.OrderID, store.ErrNotFound)
		}
		for _, existing := range d.payments {
			if existing.OrderID == p.OrderID {
				return fmt.Errorf("failed to create payment: order %d already has one: %w", p.OrderID, store.ErrConflict)
			}
			if existing.ReceiptNumber == p.ReceiptNumber {
				return fmt.Errorf("failed to create payment: receipt %s exists: %w", p.ReceiptNumber, store.ErrConflict)
			}
		}
		p.ID = d.id("payments")
		if p.PaymentTime.IsZero() {
			p.PaymentTime = s.now().UTC()
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	var (
		p  models.Payment
		ok bool
	)
	s.read(func(d *state) { p, ok = d.payments[id] })
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindPaymentByOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	var (
		p     models.Payment
		found bool
	)
	s.read(func(d *state) {
		for _, candidate := range d.payments {
			if candidate.OrderID == orderID {
				p, found = candidate, true
				return
			}
		}
	})
	if !found {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) filterPayments(keep func(models.Payment) bool) []models.Payment {
	var out []models.Payment
	s.read(func(d *state) {
		for _, p := range d.payments {
			if keep(p) {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return s.filterPayments(func(models.Payment) bool { return true }), nil
}

// FindPaymentsByTimeRange returns payments with start <= paymentTime < end
func (s *Store) FindPaymentsByTimeRange(ctx context.Context, start, end time.Time) ([]models.Payment, error) {
	return s.filterPayments(func(p models.Payment) bool {
		return !p.PaymentTime.Before(start) && p.PaymentTime.Before(end)
	}), nil
}

// Tables

func (s *Store) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	var (
		t  models.Table
		ok bool
	)
	s.read(func(d *state) { t, ok = d.tables[id] })
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) FindTableByNumber(ctx context.Context, number string) (*models.Table, error) {
	var (
		t     models.Table
		found bool
	)
	s.read(func(d *state) {
		for _, candidate := range d.tables {
			if candidate.TableNumber == number {
				t, found = candidate, true
				return
			}
		}
	})
	if !found {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTables(ctx context.Context) ([]models.Table, error) {
	var out []models.Table
	s.read(func(d *state) {
		for _, t := range d.tables {
			out = append(out, t)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, nil
}

func (s *Store) CreateTable(ctx context.Context, t *models.Table) error {
	return s.write(func(d *state) error {
		for _, existing := range d.tables {
			if existing.TableNumber == t.TableNumber {
				return fmt.Errorf("failed to create table %s: %w", t.TableNumber, store.ErrConflict)
			}
		}
		t.ID = d.id("tables")
		d.tables[t.ID] = *t
		return nil
	})
}

func (s *Store) UpdateTable(ctx context.Context, t *models.Table) error {
	return s.write(func(d *state) error {
		if _, ok := d.tables[t.ID]; !ok {
			return store.ErrNotFound
		}
		for id, existing := range d.tables {
			if id != t.ID && existing.TableNumber == t.TableNumber {
				return fmt.Errorf("failed to update table %s: %w", t.TableNumber, store.ErrConflict)
			}
		}
		d.tables[t.ID] = *t
		return nil
	})
}

// Catalog and users

func (s *Store) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var (
		m  models.MenuItem
		ok bool
	)
	s.read(func(d *state) { m, ok = d.menu[id] })
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var (
		u  models.User
		ok bool
	)
	s.read(func(d *state) { u, ok = d.users[id] })
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

// Status log

func (s *Store) AppendStatusLog(ctx context.Context, entry *models.StatusLogEntry) error {
	return s.write(func(d *state) error {
		if entry.ChangedAt.IsZero() {
			entry.ChangedAt = s.now().UTC()
		}
		d.statusLog = append(d.statusLog, *entry)
		return nil
	})
}

func (s *Store) ListStatusLog(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error) {
	var out []models.StatusLogEntry
	s.read(func(d *state) {
		for _, e := range d.statusLog {
			if e.OrderID == orderID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}
