package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmehra2102/stock-order-system/internal/order/domain"
	"github.com/dmehra2102/stock-order-system/pkg/outbox"
	"github.com/dmehra2102/stock-order-system/pkg/tracing"
)

// OutboxSink turns order events into outbox rows; the relay ships them to
// Kafka independently of the request that produced them.
type OutboxSink struct {
	appender outbox.Appender
	source   string
}

func NewOutboxSink(appender outbox.Appender, source string) *OutboxSink {
	return &OutboxSink{appender: appender, source: source}
}

func (s *OutboxSink) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	return s.appender.Append(ctx, outbox.Event{
		AggregateType: "order",
		AggregateID:   ev.OrderID,
		Type:          ev.Type,
		Payload:       payload,
		Headers:       map[string]string{"source": s.source},
		Traceparent:   tracing.Traceparent(ctx),
		CreatedAt:     ev.OccurredAt,
	})
}
