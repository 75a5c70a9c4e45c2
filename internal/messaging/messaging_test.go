package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestProcessMessage_AckNack(t *testing.T) {
	c := NewConsumer(nil, logger.Discard(), KitchenQueue, "test", 1)

	tests := []struct {
		name        string
		handlerErr  error
		wantAck     int
		wantNack    int
		wantRequeue bool
	}{
		{"success acks", nil, 1, 0, false},
		{"transient failure requeues", errors.New("db down"), 0, 1, true},
		{"permanent failure drops", Permanent(errors.New("bad json")), 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			d := amqp091.Delivery{Acknowledger: ack, Body: []byte(`{}`), DeliveryTag: 1}

			c.processMessage(context.Background(), d, func(ctx context.Context, body []byte) error {
				return tt.handlerErr
			})

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, tt.wantNack, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestParseMessage(t *testing.T) {
	var ticket models.KitchenTicket
	require.NoError(t, ParseMessage([]byte(`{"order_id":7,"kitchen_type":"BAR","quantity":2}`), &ticket))
	assert.Equal(t, int64(7), ticket.OrderID)
	assert.Equal(t, models.Bar, ticket.KitchenType)

	err := ParseMessage([]byte(`not json`), &ticket)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(errors.New("plain")))
	assert.Nil(t, Permanent(nil))
}

func TestKitchenBindings(t *testing.T) {
	queues := map[string]string{}
	for _, b := range kitchenBindings {
		queues[b.queue] = b.routingKey
	}

	assert.Equal(t, "kitchen.#", queues[KitchenQueue])
	for _, kind := range []models.KitchenType{models.HotKitchen, models.ColdKitchen, models.Bar} {
		assert.Equal(t, models.KitchenRoutingKey(kind), queues[StationQueue(kind)], string(kind))
	}
	assert.Equal(t, "kitchen_hot_queue", StationQueue(""))
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = NoopNotifier{}
	assert.NoError(t, n.PublishKitchenTicket(context.Background(), &models.KitchenTicket{}))
	assert.NoError(t, n.PublishStatusUpdate(context.Background(), &models.StatusUpdateMessage{}))
}
