package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"

	"storefront-checkout/internal/domain"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	return HeaderCarrier{headers: &msg.Headers}.Get(key)
}

func TestKafkaPublisher_PublishOutcome(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w, "checkout.reconciled", zaptest.NewLogger(t))
	outcome := domain.Outcome{Kind: domain.OutcomeCommitted, OrderID: "o1", Redirect: domain.ViewOrderHistory}

	require.NoError(t, p.PublishOutcome(context.Background(), "sess-1", "corr-1", outcome))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "checkout.reconciled", msg.Topic)
	assert.Equal(t, "sess-1", string(msg.Key))
	assert.Equal(t, "committed", header(msg, "outcome"))
	assert.Equal(t, EventTypeReconciled, header(msg, "event_type"))

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, "sess-1", event.SessionID)
	assert.NotEmpty(t, event.EventID)

	var got domain.Outcome
	require.NoError(t, json.Unmarshal(event.Data, &got))
	assert.Equal(t, outcome, got)
}

func TestKafkaPublisher_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "reconcile")
	defer span.End()

	w := &recordingWriter{}
	p := NewKafkaPublisher(w, "t", zaptest.NewLogger(t))
	require.NoError(t, p.PublishOutcome(ctx, "sess-1", "", domain.Outcome{Kind: domain.OutcomeGatewayDeclined}))

	assert.Contains(t, header(w.msgs[0], "traceparent"), span.SpanContext().TraceID().String())
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w, "t", zaptest.NewLogger(t))

	err := p.PublishOutcome(context.Background(), "sess-1", "", domain.Outcome{Kind: domain.OutcomeStatusUnknown})
	assert.ErrorContains(t, err, "broker down")
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := HeaderCarrier{headers: &headers}

	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "3", c.Get("b"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishOutcome(context.Background(), "s", "c", domain.Outcome{}))
	assert.NoError(t, NopPublisher{}.Close())
}
