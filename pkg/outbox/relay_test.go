package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu   sync.Mutex
	msgs []kafka.Message
	fail map[string]bool
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if p.fail[string(m.Key)] {
			return errors.New("leader not available")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func newRelay(t *testing.T, p Producer) (*Relay, *MemoryStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewMemoryStore()
	return NewRelay(log, store, NewDispatcher(log, p, "order.events"), "relay-test"), store
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestTickDispatchesPendingEvents(t *testing.T) {
	p := &fakeProducer{}
	relay, store := newRelay(t, p)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Event{
		AggregateType: "order", AggregateID: "o-1", Type: "OrderPlaced",
		Payload: []byte(`{}`), Traceparent: "00-abc-def-01", Headers: map[string]string{"source": "order-service"},
	}))
	require.NoError(t, store.Append(ctx, Event{AggregateType: "order", AggregateID: "o-2", Type: "OrderCancelled", Payload: []byte(`{}`)}))

	n, err := relay.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, p.msgs, 2)
	assert.Equal(t, "order.events", p.msgs[0].Topic)
	assert.Equal(t, "o-1", string(p.msgs[0].Key))
	assert.Equal(t, "OrderPlaced", header(p.msgs[0], "event_type"))
	assert.Equal(t, "00-abc-def-01", header(p.msgs[0], "traceparent"))
	assert.Equal(t, "order-service", header(p.msgs[0], "source"))

	n, err = relay.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok := store.Get(1)
	assert.False(t, ok)
}

func TestTickRetriesFailedEventsUpToLimit(t *testing.T) {
	p := &fakeProducer{fail: map[string]bool{"o-1": true}}
	relay, store := newRelay(t, p)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Event{AggregateID: "o-1", Type: "OrderPlaced", Payload: []byte(`{}`)}))

	for range MaxRetries {
		n, err := relay.Tick(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	e, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, MaxRetries, e.RetryCount)
	require.NotNil(t, e.LastError)

	events, err := store.LockBatch(ctx, "relay-test", 10, time.Second)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTickStopsRetryingPermanentFailures(t *testing.T) {
	relay, store := newRelay(t, &fakeProducer{})
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Event{AggregateID: "o-1", Type: "OrderPlaced"}))

	_, err := relay.Tick(ctx)
	require.NoError(t, err)

	e, ok := store.Get(1)
	require.True(t, ok)
	assert.False(t, e.Claimable(time.Now()))
}

func TestExpiredLeaseIsReclaimed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Event{AggregateID: "o-1", Payload: []byte(`{}`)}))

	first, err := store.LockBatch(ctx, "a", 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, first, 1)

	none, err := store.LockBatch(ctx, "b", 10, time.Second)
	require.NoError(t, err)
	assert.Empty(t, none)

	time.Sleep(80 * time.Millisecond)
	again, err := store.LockBatch(ctx, "b", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "b", again[0].RelayID)
}
