// Package table manages dining tables: their open/occupied/closed status,
// visibility and assigned waiter.
package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/keylock"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

const maxCapacity = 50

// CreateRequest describes a new table
type CreateRequest struct {
	TableNumber string `json:"tableNumber"`
	Zone        string `json:"zone"`
	Capacity    int    `json:"capacity"`
}

// UpdateRequest changes a table's descriptive fields. Status, waiter and
// visibility have their own operations.
type UpdateRequest struct {
	TableNumber string `json:"tableNumber"`
	Zone        string `json:"zone"`
	Capacity    int    `json:"capacity"`
}

// Registry implements table lookups and status changes
type Registry struct {
	store  store.Store
	locks  *keylock.Locker
	logger *logger.Logger
	now    func() time.Time
}

// NewRegistry creates a Registry. locks must be the same Locker the order
// engine uses so table status changes and order creation are serialized.
func NewRegistry(s store.Store, locks *keylock.Locker, log *logger.Logger) *Registry {
	return &Registry{
		store:  s,
		locks:  locks,
		logger: log,
		now:    time.Now,
	}
}

func lookupErr(op, key string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.TableNotFound(op, key)
	}
	return fmt.Errorf("failed to load table %s: %w", key, err)
}

// FindByNumber returns the table with the given zone-prefixed number
func (r *Registry) FindByNumber(ctx context.Context, number string) (*models.Table, error) {
	t, err := r.store.FindTableByNumber(ctx, number)
	if err != nil {
		return nil, lookupErr("table.FindByNumber", number, err)
	}
	return t, nil
}

// Get returns the table with the given id
func (r *Registry) Get(ctx context.Context, id int64) (*models.Table, error) {
	t, err := r.store.GetTable(ctx, id)
	if err != nil {
		return nil, lookupErr("table.Get", fmt.Sprint(id), err)
	}
	return t, nil
}

// CurrentWaiterID returns the waiter assigned to the table, if any
func (r *Registry) CurrentWaiterID(ctx context.Context, id int64) (*int64, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.CurrentWaiterID, nil
}

// List returns active tables, or every table when includeHidden is set
func (r *Registry) List(ctx context.Context, includeHidden bool) ([]models.Table, error) {
	tables, err := r.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	if includeHidden {
		return tables, nil
	}

	visible := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		if t.IsActive {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// ListByStatus returns active tables in the given status
func (r *Registry) ListByStatus(ctx context.Context, status string) ([]models.Table, error) {
	st, err := models.ParseTableStatus(status)
	if err != nil {
		return nil, apperror.Validation("table.ListByStatus", err)
	}

	tables, err := r.List(ctx, false)
	if err != nil {
		return nil, err
	}

	var out []models.Table
	for _, t := range tables {
		if t.Status == st {
			out = append(out, t)
		}
	}
	return out, nil
}

func validateFields(op, number, zone string, capacity int) error {
	switch {
	case strings.TrimSpace(number) == "":
		return apperror.Validation(op, errors.New("tableNumber is required"))
	case !models.ValidTableNumber(number):
		return apperror.Validation(op, fmt.Errorf("tableNumber %q must look like A_01", number))
	case strings.TrimSpace(zone) == "":
		return apperror.Validation(op, errors.New("zone is required"))
	case capacity <= 0 || capacity > maxCapacity:
		return apperror.Validation(op, fmt.Errorf("capacity must be between 1 and %d", maxCapacity))
	}
	return nil
}

// Create adds a closed, visible table. Table numbers are unique.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*models.Table, error) {
	const op = "table.Create"
	if err := validateFields(op, req.TableNumber, req.Zone, req.Capacity); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(keylock.TableKey(req.TableNumber))
	defer unlock()

	t := &models.Table{
		TableNumber: req.TableNumber,
		Zone:        req.Zone,
		Capacity:    req.Capacity,
		Status:      models.TableClosed,
		IsActive:    true,
	}
	if err := r.store.CreateTable(ctx, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperror.InvalidOperation(op, "table number %s already exists", req.TableNumber)
		}
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	r.logger.Info("table_created", "Table created", "", map[string]interface{}{
		"table_id":     t.ID,
		"table_number": t.TableNumber,
	})
	return t, nil
}

// mutate loads the table, locks it by number and persists whatever fn changed
func (r *Registry) mutate(ctx context.Context, op string, id int64, fn func(tx store.Store, t *models.Table) error) (*models.Table, error) {
	current, err := r.store.GetTable(ctx, id)
	if err != nil {
		return nil, lookupErr(op, fmt.Sprint(id), err)
	}

	unlock := r.locks.Lock(keylock.TableKey(current.TableNumber))
	defer unlock()

	var updated *models.Table
	err = r.store.WithTx(ctx, func(tx store.Store) error {
		t, err := tx.GetTable(ctx, id)
		if err != nil {
			return lookupErr(op, fmt.Sprint(id), err)
		}
		if err := fn(tx, t); err != nil {
			return err
		}
		if err := tx.UpdateTable(ctx, t); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperror.InvalidOperation(op, "table number %s already exists", t.TableNumber)
			}
			return fmt.Errorf("failed to update table: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Update changes number, zone and capacity
func (r *Registry) Update(ctx context.Context, id int64, req UpdateRequest) (*models.Table, error) {
	const op = "table.Update"
	if err := validateFields(op, req.TableNumber, req.Zone, req.Capacity); err != nil {
		return nil, err
	}
	return r.mutate(ctx, op, id, func(_ store.Store, t *models.Table) error {
		t.TableNumber = req.TableNumber
		t.Zone = req.Zone
		t.Capacity = req.Capacity
		return nil
	})
}

// Open readies a closed table for guests
func (r *Registry) Open(ctx context.Context, id int64) (*models.Table, error) {
	const op = "table.Open"
	t, err := r.mutate(ctx, op, id, func(_ store.Store, t *models.Table) error {
		if t.Status != models.TableClosed {
			return apperror.InvalidOperation(op, "table %s is %s, only a CLOSED table can be opened", t.TableNumber, t.Status)
		}
		now := r.now().UTC()
		t.Status = models.TableOpened
		t.OccupiedAt = &now
		return nil
	})
	if err == nil {
		r.logStatus(t)
	}
	return t, err
}

// Occupy marks an opened table as seated
func (r *Registry) Occupy(ctx context.Context, id int64) (*models.Table, error) {
	const op = "table.Occupy"
	t, err := r.mutate(ctx, op, id, func(_ store.Store, t *models.Table) error {
		if t.Status != models.TableOpened {
			return apperror.InvalidOperation(op, "table %s is %s, only an OPENED table can be occupied", t.TableNumber, t.Status)
		}
		t.Status = models.TableOccupied
		return nil
	})
	if err == nil {
		r.logStatus(t)
	}
	return t, err
}

// Close frees the table. It fails while any order on the table is unpaid,
// ignoring cancelled ones.
func (r *Registry) Close(ctx context.Context, id int64) (*models.Table, error) {
	const op = "table.Close"
	t, err := r.mutate(ctx, op, id, func(tx store.Store, t *models.Table) error {
		orders, err := tx.ListOrdersByTable(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to list table orders: %w", err)
		}
		for _, o := range orders {
			if !o.IsPaid && o.Status != models.OrderCancelled {
				return apperror.InvalidOperation(op, "table %s has unpaid order %d", t.TableNumber, o.ID)
			}
		}
		t.Status = models.TableClosed
		t.OccupiedAt = nil
		return nil
	})
	if err == nil {
		r.logStatus(t)
	}
	return t, err
}

// SetStatus overwrites the status without transition checks
func (r *Registry) SetStatus(ctx context.Context, id int64, status string) (*models.Table, error) {
	const op = "table.SetStatus"
	st, err := models.ParseTableStatus(status)
	if err != nil {
		return nil, apperror.Validation(op, err)
	}
	t, err := r.mutate(ctx, op, id, func(_ store.Store, t *models.Table) error {
		t.Status = st
		if st == models.TableClosed {
			t.OccupiedAt = nil
		}
		return nil
	})
	if err == nil {
		r.logStatus(t)
	}
	return t, err
}

// AssignWaiter sets the table's current waiter
func (r *Registry) AssignWaiter(ctx context.Context, id, waiterID int64) (*models.Table, error) {
	const op = "table.AssignWaiter"
	if _, err := r.store.GetUser(ctx, waiterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound(op, "user %d not found", waiterID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return r.mutate(ctx, op, id, func(_ store.Store, t *models.Table) error {
		t.CurrentWaiterID = &waiterID
		return nil
	})
}

// Hide removes a closed table from the default listing
func (r *Registry) Hide(ctx context.Context, id int64) (*models.Table, error) {
	const op = "table.Hide"
	return r.mutate(ctx, op, id, func(_ store.Store, t *models.Table) error {
		if t.Status != models.TableClosed {
			return apperror.InvalidOperation(op, "table %s must be CLOSED before it can be hidden", t.TableNumber)
		}
		t.IsActive = false
		return nil
	})
}

// Show makes a hidden table visible again
func (r *Registry) Show(ctx context.Context, id int64) (*models.Table, error) {
	return r.mutate(ctx, "table.Show", id, func(_ store.Store, t *models.Table) error {
		t.IsActive = true
		return nil
	})
}

func (r *Registry) logStatus(t *models.Table) {
	r.logger.Info("table_status_changed", fmt.Sprintf("Table %s is now %s", t.TableNumber, t.Status), "", map[string]interface{}{
		"table_id":     t.ID,
		"table_number": t.TableNumber,
		"status":       string(t.Status),
	})
}
