package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const envelopeVersion = 1

type publisher interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header) bool
}

// Sink publishes domain events as envelope v1 messages keyed by order id.
type Sink struct {
	P       publisher
	Service string
	Log     *zap.Logger
	Now     func() time.Time
}

func NewSink(p *Producer, service string, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{P: p, Service: service, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *Sink) Emit(ctx context.Context, ev orders.Event) {
	topic := orders.TopicFor(ev.Type)
	if topic == "" {
		s.Log.Warn("no topic for event", zap.String("event_type", ev.Type))
		return
	}
	env, err := NewEnvelope(ctx, ev, s.Service, s.now())
	if err != nil {
		s.Log.Error("build envelope", zap.String("event_type", ev.Type), zap.Error(err))
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		s.Log.Error("marshal envelope", zap.String("event_type", ev.Type), zap.Error(err))
		return
	}
	headers := InjectTrace(ctx, []kafka.Header{
		{Key: HeaderEventType, Value: []byte(ev.Type)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(envelopeVersion))},
	})
	if !s.P.Publish(topic, orders.PartitionKey(ev.OrderID), value, headers...) {
		s.Log.Warn("event dropped", zap.String("event_type", ev.Type), zap.String("order_id", ev.OrderID))
	}
}

// NewEnvelope wraps ev for the wire. trace_id is taken from the active span.
func NewEnvelope(ctx context.Context, ev orders.Event, producer string, at time.Time) (orders.Envelope, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return orders.Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  envelopeVersion,
		OccurredAt:    at,
		Producer:      producer,
		CorrelationID: ev.OrderID,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env, nil
}

func (s *Sink) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}
