package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "go-chatroom"

// Metrics holds the chat counters. Without an installed SDK the global meter
// provider is a no-op, so recording is always safe.
type Metrics struct {
	messagesPersisted   metric.Int64Counter
	persistenceFailures metric.Int64Counter
	deliveries          metric.Int64Counter
	deliveryFailures    metric.Int64Counter
	roomJoins           metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFromProvider(otel.GetMeterProvider())
}

func NewMetricsFromProvider(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	messagesPersisted, err := meter.Int64Counter("chat_messages_persisted_total",
		metric.WithDescription("Messages committed together with their read flags"))
	if err != nil {
		return nil, err
	}
	persistenceFailures, err := meter.Int64Counter("chat_persistence_failures_total",
		metric.WithDescription("Send attempts whose unit of work was aborted"))
	if err != nil {
		return nil, err
	}
	deliveries, err := meter.Int64Counter("chat_deliveries_total",
		metric.WithDescription("Envelopes handed to live connections"))
	if err != nil {
		return nil, err
	}
	deliveryFailures, err := meter.Int64Counter("chat_delivery_failures_total",
		metric.WithDescription("Per-connection send failures"))
	if err != nil {
		return nil, err
	}
	roomJoins, err := meter.Int64Counter("chat_room_joins_total",
		metric.WithDescription("Connections entering a room"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		messagesPersisted:   messagesPersisted,
		persistenceFailures: persistenceFailures,
		deliveries:          deliveries,
		deliveryFailures:    deliveryFailures,
		roomJoins:           roomJoins,
	}, nil
}

func (m *Metrics) MessagePersisted(ctx context.Context) {
	m.messagesPersisted.Add(ctx, 1)
}

func (m *Metrics) PersistenceFailed(ctx context.Context) {
	m.persistenceFailures.Add(ctx, 1)
}

func (m *Metrics) Delivered(ctx context.Context, envelopeType string) {
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("type", envelopeType)))
}

func (m *Metrics) DeliveryFailed(ctx context.Context, envelopeType string) {
	m.deliveryFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("type", envelopeType)))
}

func (m *Metrics) RoomJoined(ctx context.Context) {
	m.roomJoins.Add(ctx, 1)
}
