package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TableStatus represents the occupancy of a dining table
type TableStatus string

const (
	TableClosed   TableStatus = "CLOSED"
	TableOpened   TableStatus = "OPENED"
	TableOccupied TableStatus = "OCCUPIED"
)

// ParseTableStatus converts a request string into a TableStatus or fails
func ParseTableStatus(s string) (TableStatus, error) {
	switch st := TableStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case TableClosed, TableOpened, TableOccupied:
		return st, nil
	default:
		return "", fmt.Errorf("status must be one of: CLOSED, OPENED, OCCUPIED")
	}
}

var tableNumberPattern = regexp.MustCompile(`^[A-Z]+_[0-9]{2,}$`)

// ValidTableNumber reports whether s is a zone-prefixed code such as A_01
func ValidTableNumber(s string) bool {
	return tableNumberPattern.MatchString(s)
}

// Table is a dining table, identified to customers by a zone-prefixed number like A_01
type Table struct {
	ID              int64       `json:"id" db:"id"`
	TableNumber     string      `json:"tableNumber" db:"table_number"`
	Zone            string      `json:"zone" db:"zone"`
	Capacity        int         `json:"capacity" db:"capacity"`
	Status          TableStatus `json:"status" db:"status"`
	CurrentWaiterID *int64      `json:"currentWaiterId,omitempty" db:"current_waiter_id"`
	OccupiedAt      *time.Time  `json:"occupiedAt,omitempty" db:"occupied_at"`
	IsActive        bool        `json:"isActive" db:"is_active"`
}

// KitchenType routes an item to a kitchen station
type KitchenType string

const (
	HotKitchen  KitchenType = "HOT_KITCHEN"
	ColdKitchen KitchenType = "COLD_KITCHEN"
	Bar         KitchenType = "BAR"
)

// ParseKitchenTypes parses a comma-separated list of kitchen types, ignoring unknown entries
func ParseKitchenTypes(s string) []KitchenType {
	if s == "" {
		return nil
	}

	var kinds []KitchenType
	for _, part := range strings.Split(s, ",") {
		switch k := KitchenType(strings.ToUpper(strings.TrimSpace(part))); k {
		case HotKitchen, ColdKitchen, Bar:
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// MenuItem is a read-only catalog entry
type MenuItem struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Category    string          `json:"category" db:"category"`
	Price       decimal.Decimal `json:"price" db:"price"`
	IsAvailable bool            `json:"isAvailable" db:"is_available"`
	KitchenType KitchenType     `json:"kitchenType" db:"kitchen_type"`
}

// UserRole is a staff role
type UserRole string

const (
	RoleWaiter       UserRole = "WAITER"
	RoleKitchenStaff UserRole = "KITCHEN_STAFF"
	RoleManager      UserRole = "MANAGER"
	RoleCashier      UserRole = "CASHIER"
	RoleAdmin        UserRole = "ADMIN"
)

// User is a staff member; only the fields the order engine projects are loaded
type User struct {
	ID   int64    `json:"id" db:"id"`
	Name string   `json:"name" db:"name"`
	Role UserRole `json:"role" db:"role"`
}
