package validation

import (
	"errors"
	"strings"
	"testing"

	"restaurant-orders/internal/models"
)

func TestValidateCreateOrderRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       *models.CreateOrderRequest
		wantErr   bool
		wantField string
	}{
		{
			name: "valid request",
			req: &models.CreateOrderRequest{
				Items: []models.OrderItemRequest{
					{MenuItemID: 1, Quantity: 2, Note: "no wasabi"},
				},
			},
			wantErr: false,
		},
		{
			name:      "nil request",
			req:       nil,
			wantErr:   true,
			wantField: "items",
		},
		{
			name:      "empty items",
			req:       &models.CreateOrderRequest{},
			wantErr:   true,
			wantField: "items",
		},
		{
			name: "missing menu item id",
			req: &models.CreateOrderRequest{
				Items: []models.OrderItemRequest{
					{MenuItemID: 1, Quantity: 1},
					{MenuItemID: 0, Quantity: 1},
				},
			},
			wantErr:   true,
			wantField: "items[1].menuItemId",
		},
		{
			name: "zero quantity",
			req: &models.CreateOrderRequest{
				Items: []models.OrderItemRequest{
					{MenuItemID: 1, Quantity: 0},
				},
			},
			wantErr:   true,
			wantField: "items[0].quantity",
		},
		{
			name: "negative quantity",
			req: &models.CreateOrderRequest{
				Items: []models.OrderItemRequest{
					{MenuItemID: 1, Quantity: -3},
				},
			},
			wantErr:   true,
			wantField: "items[0].quantity",
		},
		{
			name: "quantity too large",
			req: &models.CreateOrderRequest{
				Items: []models.OrderItemRequest{
					{MenuItemID: 1, Quantity: 100},
				},
			},
			wantErr:   true,
			wantField: "items[0].quantity",
		},
		{
			name: "note too long",
			req: &models.CreateOrderRequest{
				Items: []models.OrderItemRequest{
					{MenuItemID: 1, Quantity: 1, Note: strings.Repeat("x", 256)},
				},
			},
			wantErr:   true,
			wantField: "items[0].note",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreateOrderRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCreateOrderRequest() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil {
				return
			}
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestValidateTableNumber(t *testing.T) {
	tests := []struct {
		number  string
		wantErr bool
	}{
		{"A_01", false},
		{"VIP_12", false},
		{"", true},
		{"a_01", true},
		{"A01", true},
		{"A_1", true},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			if err := ValidateTableNumber(tt.number); (err != nil) != tt.wantErr {
				t.Errorf("ValidateTableNumber(%q) error = %v, wantErr %v", tt.number, err, tt.wantErr)
			}
		})
	}
}

func TestValidateItem(t *testing.T) {
	if err := ValidateItem(1, 1, ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateItem(1, 0, "")
	var vErr ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "quantity" {
		t.Errorf("expected quantity error, got %v", err)
	}
}
