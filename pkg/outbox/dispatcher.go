package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// Header keys set on every dispatched message. Custom headers with the same
// key are overridden.
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
	HeaderTraceparent   = "traceparent"
)

// ErrPermanent marks an event that will never dispatch; the relay stops
// retrying it.
var ErrPermanent = errors.New("permanent")

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// Dispatch writes one event to the topic. A malformed event fails with
// ErrPermanent.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	msg, err := d.Message(event)
	if err != nil {
		return err
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "aggregate_id", event.AggregateID, "err", err)
		return err
	}
	d.log.Debug("outbox dispatched", "event_id", event.ID, "type", event.Type, "aggregate_id", event.AggregateID)
	return nil
}

// Message builds the Kafka message for event. It is keyed by aggregate id so
// every event of one order lands on the same partition in append order.
func (d *Dispatcher) Message(event Event) (kafka.Message, error) {
	switch {
	case len(event.Payload) == 0:
		return kafka.Message{}, fmt.Errorf("event %d has no payload: %w", event.ID, ErrPermanent)
	case event.AggregateID == "":
		return kafka.Message{}, fmt.Errorf("event %d has no aggregate id: %w", event.ID, ErrPermanent)
	}

	reserved := map[string]string{
		HeaderEventID:       strconv.FormatInt(event.ID, 10),
		HeaderEventType:     event.Type,
		HeaderAggregateType: event.AggregateType,
	}
	if event.Traceparent != "" {
		reserved[HeaderTraceparent] = event.Traceparent
	}

	headers := make([]kafka.Header, 0, len(event.Headers)+len(reserved))
	for _, k := range slices.Sorted(maps.Keys(event.Headers)) {
		if _, ok := reserved[k]; ok {
			continue
		}
		headers = append(headers, kafka.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	for _, k := range slices.Sorted(maps.Keys(reserved)) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(reserved[k])})
	}

	return kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
		Time:    event.CreatedAt,
	}, nil
}
