package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testEvent() domain.Event {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cart := domain.NewCart("user-1", now)
	p := domain.Product{ID: "p1", Name: "Mug", Price: decimal.RequireFromString("10"), Stock: 5, IsActive: true}
	line := cart.MergeLine(p, domain.ItemRequest{ProductID: "p1", Quantity: 2, Size: "M", Color: "Red"}, now)
	cart.Version = 1
	return domain.NewLineEvent(domain.EventItemAdded, cart, line, now)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}

	event := testEvent()
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "user-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "cart.item.added", string(msg.Headers[0].Value))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.EventItemAdded, decoded.Type)
	assert.Equal(t, event.LineID, decoded.LineID)
	assert.Equal(t, 2, decoded.Quantity)
	assert.Equal(t, "20", decoded.TotalPrice.String())
	assert.Equal(t, int64(1), decoded.Version)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), testEvent())
	assert.ErrorContains(t, err, "write event cart.item.added: broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), testEvent()))
}
