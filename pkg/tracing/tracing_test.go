package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectKafkaHeaders(ctx, []kafka.Header{
		{Key: "event_type", Value: []byte("OrderPlaced")},
		{Key: TraceparentHeader, Value: []byte("stale")},
	})
	assert.Equal(t, "OrderPlaced", HeaderValue(headers, "event_type"))
	require.Equal(t, Traceparent(ctx), HeaderValue(headers, TraceparentHeader))

	got := ExtractKafkaHeaders(context.Background(), headers)
	sc := span.SpanContext()
	remote := trace.SpanContextFromContext(got)
	assert.Equal(t, sc.TraceID(), remote.TraceID())
	assert.Equal(t, sc.SpanID(), remote.SpanID())
}

func TestTraceparentWithoutSpan(t *testing.T) {
	assert.Empty(t, Traceparent(context.Background()))
	assert.Empty(t, HeaderValue(nil, TraceparentHeader))
}
