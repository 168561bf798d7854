package outbox

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageCarriesEventMetadata(t *testing.T) {
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), &fakeProducer{}, "order.events")
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	msg, err := d.Message(Event{
		ID: 42, AggregateType: "order", AggregateID: "o-1", Type: "OrderCancelled",
		Payload: []byte(`{}`), CreatedAt: created,
		Headers: map[string]string{"source": "order-service", "event_type": "spoofed"},
	})
	require.NoError(t, err)

	assert.Equal(t, "o-1", string(msg.Key))
	assert.Equal(t, created, msg.Time)
	assert.Equal(t, "42", header(msg, HeaderEventID))
	assert.Equal(t, "OrderCancelled", header(msg, HeaderEventType))
	assert.Equal(t, "order", header(msg, HeaderAggregateType))
	assert.Empty(t, header(msg, HeaderTraceparent))

	keys := make([]string, 0, len(msg.Headers))
	for _, h := range msg.Headers {
		keys = append(keys, h.Key)
	}
	assert.Equal(t, []string{"source", "aggregate_type", "event_id", "event_type"}, keys)
}

func TestMessageRejectsEventWithoutAggregate(t *testing.T) {
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), &fakeProducer{}, "order.events")

	_, err := d.Message(Event{ID: 7, Type: "OrderPlaced", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrPermanent)
}
