package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    OrderStatus
		wantErr bool
	}{
		{"PENDING", OrderPending, false},
		{"serving", OrderServing, false},
		{" paid ", OrderPaid, false},
		{"CANCELLED", OrderCancelled, false},
		{"COOKING", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOrderItemStatus(t *testing.T) {
	got, err := ParseOrderItemStatus("ready")
	require.NoError(t, err)
	assert.Equal(t, ItemReady, got)

	_, err = ParseOrderItemStatus("SERVING")
	assert.Error(t, err)
}

func TestParsePaymentMethod(t *testing.T) {
	got, err := ParsePaymentMethod("credit_card")
	require.NoError(t, err)
	assert.Equal(t, PaymentCreditCard, got)

	_, err = ParsePaymentMethod("BITCOIN")
	assert.Error(t, err)
}

func TestParseTableStatus(t *testing.T) {
	got, err := ParseTableStatus("opened")
	require.NoError(t, err)
	assert.Equal(t, TableOpened, got)

	_, err = ParseTableStatus("AVAILABLE")
	assert.Error(t, err)
}

func TestParseKitchenTypes(t *testing.T) {
	assert.Nil(t, ParseKitchenTypes(""))
	assert.Equal(t, []KitchenType{HotKitchen, Bar}, ParseKitchenTypes("hot_kitchen, bar, grill"))
}

func TestCalculateTotalAmount(t *testing.T) {
	items := []OrderItem{
		{Price: decimal.NewFromInt(120000), Quantity: 2},
		{Price: decimal.RequireFromString("15000.50"), Quantity: 3},
	}

	assert.True(t, decimal.RequireFromString("285001.50").Equal(CalculateTotalAmount(items)))
	assert.True(t, decimal.Zero.Equal(CalculateTotalAmount(nil)))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, OrderPaid.IsTerminal())
	assert.True(t, OrderCancelled.IsTerminal())
	assert.False(t, OrderServing.IsTerminal())
	assert.True(t, OrderPending.IsActive())
	assert.True(t, ItemCooking.IsOutstanding())
	assert.False(t, ItemServed.IsOutstanding())
}

func TestKitchenRoutingKey(t *testing.T) {
	assert.Equal(t, "kitchen.BAR", KitchenRoutingKey(Bar))
	assert.Equal(t, "kitchen.HOT_KITCHEN", KitchenRoutingKey(""))
}

func TestOutstandingItems(t *testing.T) {
	items := []OrderItem{
		{ID: 1, Status: ItemPending},
		{ID: 2, Status: ItemReady},
		{ID: 3, Status: ItemCooking},
		{ID: 4, Status: ItemCancelled},
	}

	out := OutstandingItems(items)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)
	assert.Empty(t, OutstandingItems(items[1:2]))
}
