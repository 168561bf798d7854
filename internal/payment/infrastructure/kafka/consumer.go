package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/payment/domain"
	"github.com/dmehra2102/stock-order-system/pkg/idempotency"
	"github.com/dmehra2102/stock-order-system/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler applies gateway results to orders.
type Handler interface {
	HandleProcessed(ctx context.Context, ev domain.PaymentProcessed) error
	HandleFailed(ctx context.Context, ev domain.PaymentFailed) error
}

type Consumer struct {
	log    *slog.Logger
	reader Reader
	h      Handler
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, h Handler, idem *idempotency.Store) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		h:      h,
		idem:   idem,
		tracer: otel.Tracer("payment-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// Transient: leave uncommitted and forget the key so redelivery is
			// processed again.
			c.log.Error("payment result not applied", "key", key, "err", err)
			if fErr := c.idem.Forget(ctx, key); fErr != nil {
				c.log.Error("idempotency forget failed", "key", key, "err", fErr)
			}
			continue
		}
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// handle returns an error only for failures worth redelivering. Business
// rejections and malformed messages are logged and dropped.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	eventType := tracing.HeaderValue(msg.Headers, "event_type")
	msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType)
	defer span.End()

	var orderID string
	var err error
	switch eventType {
	case domain.EventPaymentProcessed:
		var ev domain.PaymentProcessed
		if uErr := json.Unmarshal(msg.Value, &ev); uErr != nil {
			c.log.Error("unmarshal failed", "type", eventType, "err", uErr)
			return nil
		}
		orderID = ev.OrderID
		err = c.h.HandleProcessed(msgCtx, ev)
	case domain.EventPaymentFailed:
		var ev domain.PaymentFailed
		if uErr := json.Unmarshal(msg.Value, &ev); uErr != nil {
			c.log.Error("unmarshal failed", "type", eventType, "err", uErr)
			return nil
		}
		orderID = ev.OrderID
		err = c.h.HandleFailed(msgCtx, ev)
	default:
		c.log.Warn("unknown payment event skipped", "type", eventType)
		return nil
	}

	if err == nil {
		c.log.Info("payment result applied", "type", eventType, "order_id", orderID)
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && !apperr.Retryable(err) {
		c.log.Info("payment result rejected", "type", eventType, "order_id", orderID, "code", appErr.Code)
		return nil
	}
	span.RecordError(err)
	return err
}
