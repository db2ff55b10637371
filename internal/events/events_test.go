package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cocsc-web/api/internal/ws"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcast struct {
	topic string
	event ws.Event
}

type fakeHub struct {
	sent []broadcast
}

func (f *fakeHub) Broadcast(topic string, event ws.Event) {
	f.sent = append(f.sent, broadcast{topic, event})
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func sampleEvent() Event {
	return Event{
		Type:          "order.updated",
		OrderID:       uuid.New(),
		Status:        "paid",
		PaymentStatus: "paid",
		OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHubPublisher(t *testing.T) {
	hub := &fakeHub{}
	e := sampleEvent()

	require.NoError(t, NewHubPublisher(hub).Publish(context.Background(), e))
	require.Len(t, hub.sent, 2)

	assert.Equal(t, ws.TopicOrders, hub.sent[0].topic)
	assert.Equal(t, ws.OrderTopic(e.OrderID), hub.sent[1].topic)

	var got Event
	require.NoError(t, json.Unmarshal(hub.sent[0].event.Payload, &got))
	assert.Equal(t, e, got)
	assert.Equal(t, "order.updated", hub.sent[0].event.Type)
}

func TestRabbitMQPublish(t *testing.T) {
	ch := &fakeChannel{}
	r := &RabbitMQ{ch: ch, exchange: "orders_exchange"}
	e := sampleEvent()

	require.NoError(t, r.Publish(context.Background(), e))
	require.Len(t, ch.published, 1)

	p := ch.published[0]
	assert.Equal(t, "orders_exchange", p.exchange)
	assert.Equal(t, "order.updated", p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.JSONEq(t, `{
		"type": "order.updated",
		"orderId": "`+e.OrderID.String()+`",
		"status": "paid",
		"paymentStatus": "paid",
		"occurredAt": "2026-03-01T09:00:00Z"
	}`, string(p.msg.Body))

	require.NoError(t, r.Close())
	assert.True(t, ch.closed)
}

func TestRabbitMQPublishError(t *testing.T) {
	r := &RabbitMQ{ch: &fakeChannel{err: amqp.ErrClosed}, exchange: "x"}
	err := r.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMulti(t *testing.T) {
	hub := &fakeHub{}
	boom := errors.New("boom")
	m := Multi{failing{boom}, NewHubPublisher(hub), Nop{}}

	err := m.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, hub.sent, 2, "later publishers still run after a failure")

	assert.NoError(t, Multi{Nop{}}.Publish(context.Background(), sampleEvent()))
}
