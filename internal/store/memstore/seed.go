package memstore

import (
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-orders/internal/models"
)

// AddTable inserts a table as-is, assigning an id if it has none
func (s *Store) AddTable(t models.Table) models.Table {
	_ = s.write(func(d *state) error {
		if t.ID == 0 {
			t.ID = d.id("tables")
		} else if t.ID > d.nextID["tables"] {
			d.nextID["tables"] = t.ID
		}
		d.tables[t.ID] = t
		return nil
	})
	return t
}

// AddMenuItem inserts a catalog entry, assigning an id if it has none
func (s *Store) AddMenuItem(m models.MenuItem) models.MenuItem {
	_ = s.write(func(d *state) error {
		if m.ID == 0 {
			m.ID = d.id("menu_items")
		} else if m.ID > d.nextID["menu_items"] {
			d.nextID["menu_items"] = m.ID
		}
		d.menu[m.ID] = m
		return nil
	})
	return m
}

// SetMenuItem overwrites an existing catalog entry, e.g. to change its price
func (s *Store) SetMenuItem(m models.MenuItem) {
	_ = s.write(func(d *state) error {
		d.menu[m.ID] = m
		return nil
	})
}

// AddUser inserts a staff member, assigning an id if it has none
func (s *Store) AddUser(u models.User) models.User {
	_ = s.write(func(d *state) error {
		if u.ID == 0 {
			u.ID = d.id("users")
		} else if u.ID > d.nextID["users"] {
			d.nextID["users"] = u.ID
		}
		d.users[u.ID] = u
		return nil
	})
	return u
}

// NewSeeded returns a store holding the same reference data as the
// 0002_seed.sql migration: staff, zones A-C with five tables each, and a
// small menu.
func NewSeeded() *Store {
	s := New()

	for _, u := range []models.User{
		{ID: 1, Name: "Chef User", Role: models.RoleKitchenStaff},
		{ID: 2, Name: "Manager User", Role: models.RoleManager},
		{ID: 3, Name: "Waiter User", Role: models.RoleWaiter},
		{ID: 4, Name: "Admin User", Role: models.RoleAdmin},
		{ID: 5, Name: "Cashier User", Role: models.RoleCashier},
	} {
		s.AddUser(u)
	}

	manager := int64(2)
	for _, zone := range []string{"A", "B", "C"} {
		for i := 1; i <= 5; i++ {
			waiter := manager
			s.AddTable(models.Table{
				TableNumber:     fmt.Sprintf("%s_%02d", zone, i),
				Zone:            zone,
				Capacity:        4 + (i%2)*2,
				Status:          models.TableClosed,
				CurrentWaiterID: &waiter,
				IsActive:        !((zone == "C" && i > 3) || (zone == "B" && i == 5)),
			})
		}
	}

	for _, m := range seedMenu {
		s.AddMenuItem(m)
	}
	return s
}

var seedMenu = []models.MenuItem{
	{ID: 1, Name: "Salmon Roll", Category: "Sushi", Price: decimal.NewFromInt(120000), IsAvailable: true, KitchenType: models.ColdKitchen},
	{ID: 2, Name: "Spicy Tuna Roll", Category: "Sushi", Price: decimal.NewFromInt(130000), IsAvailable: true, KitchenType: models.ColdKitchen},
	{ID: 3, Name: "Dragon Roll", Category: "Sushi", Price: decimal.NewFromInt(150000), IsAvailable: true, KitchenType: models.ColdKitchen},
	{ID: 4, Name: "Salmon Sashimi", Category: "Sashimi", Price: decimal.NewFromInt(180000), IsAvailable: true, KitchenType: models.ColdKitchen},
	{ID: 5, Name: "Classic Okonomiyaki", Category: "Okonomiyaki", Price: decimal.NewFromInt(150000), IsAvailable: true, KitchenType: models.HotKitchen},
	{ID: 6, Name: "Tonkotsu Ramen", Category: "Noodles", Price: decimal.NewFromInt(150000), IsAvailable: true, KitchenType: models.HotKitchen},
	{ID: 7, Name: "Beef Udon", Category: "Noodles", Price: decimal.NewFromInt(150000), IsAvailable: true, KitchenType: models.HotKitchen},
	{ID: 8, Name: "Wagyu Yakiniku", Category: "Grill", Price: decimal.NewFromInt(350000), IsAvailable: true, KitchenType: models.HotKitchen},
	{ID: 9, Name: "Kimchi", Category: "Sides", Price: decimal.NewFromInt(30000), IsAvailable: true, KitchenType: models.ColdKitchen},
	{ID: 10, Name: "Miso Soup", Category: "Sides", Price: decimal.NewFromInt(30000), IsAvailable: true, KitchenType: models.HotKitchen},
	{ID: 11, Name: "Coca Cola", Category: "Drinks", Price: decimal.NewFromInt(25000), IsAvailable: true, KitchenType: models.Bar},
	{ID: 12, Name: "Matcha Latte", Category: "Drinks", Price: decimal.NewFromInt(45000), IsAvailable: true, KitchenType: models.Bar},
	{ID: 13, Name: "Sake Junmai", Category: "Drinks", Price: decimal.NewFromInt(350000), IsAvailable: true, KitchenType: models.Bar},
	{ID: 14, Name: "Seasonal Oyster", Category: "Seasonal", Price: decimal.NewFromInt(220000), IsAvailable: false, KitchenType: models.ColdKitchen},
}
