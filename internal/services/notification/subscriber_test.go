package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/models"
)

var at = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func TestFormat(t *testing.T) {
	itemID := int64(7)
	tests := []struct {
		name string
		msg  models.StatusUpdateMessage
		want string
	}{
		{
			name: "order serving",
			msg:  models.StatusUpdateMessage{Entity: models.EntityOrder, OrderID: 3, TableNumber: "A_01", OldStatus: "PENDING", NewStatus: "SERVING", Timestamp: at},
			want: "[2024-05-01 12:30:00] Table A_01: order 3 is now being served.",
		},
		{
			name: "order cancelled",
			msg:  models.StatusUpdateMessage{Entity: models.EntityOrder, OrderID: 3, TableNumber: "A_01", NewStatus: "CANCELLED", Timestamp: at},
			want: "[2024-05-01 12:30:00] Table A_01: order 3 has been cancelled.",
		},
		{
			name: "item ready",
			msg:  models.StatusUpdateMessage{Entity: models.EntityOrderItem, OrderID: 3, OrderItemID: &itemID, TableNumber: "B_02", OldStatus: "COOKING", NewStatus: "READY", ChangedBy: "bar-1", Timestamp: at},
			want: "[2024-05-01 12:30:00] Table B_02: item 7 of order 3 is ready to serve (bar-1).",
		},
		{
			name: "item served",
			msg:  models.StatusUpdateMessage{Entity: models.EntityOrderItem, OrderID: 3, OrderItemID: &itemID, TableNumber: "B_02", OldStatus: "READY", NewStatus: "SERVED", ChangedBy: "staff", Timestamp: at},
			want: "[2024-05-01 12:30:00] Table B_02: item 7 of order 3 changed from READY to SERVED by staff.",
		},
		{
			name: "payment",
			msg:  models.StatusUpdateMessage{Entity: models.EntityPayment, OrderID: 3, OldStatus: "UNPAID", NewStatus: "PAID", Timestamp: at},
			want: "[2024-05-01 12:30:00] Table ?: order 3 has been paid.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(&tt.msg))
		})
	}
}

func TestHandleNotification(t *testing.T) {
	var out bytes.Buffer
	s := NewSubscriber(&out, logger.Discard())

	body, err := json.Marshal(models.StatusUpdateMessage{
		Entity: models.EntityOrder, OrderID: 9, TableNumber: "C_01", NewStatus: "PAID", Timestamp: at,
	})
	require.NoError(t, err)

	require.NoError(t, s.HandleNotification(context.Background(), body))
	assert.Equal(t, "[2024-05-01 12:30:00] Table C_01: order 9 is closed. Thank you!\n", out.String())

	err = s.HandleNotification(context.Background(), []byte("nope"))
	assert.True(t, messaging.IsPermanent(err))
}

type onceSource struct{ body []byte }

func (o onceSource) StartConsuming(ctx context.Context, handler messaging.MessageHandler) error {
	if err := handler(ctx, o.body); err != nil {
		return err
	}
	return context.Canceled
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	s := NewSubscriber(&out, logger.Discard())

	body, err := json.Marshal(models.StatusUpdateMessage{Entity: models.EntityOrder, OrderID: 1, NewStatus: "SERVING", Timestamp: at})
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background(), onceSource{body: body}))
	assert.Contains(t, out.String(), "order 1 is now being served")

	assert.Error(t, s.Run(context.Background(), onceSource{body: []byte("{")}))
}
