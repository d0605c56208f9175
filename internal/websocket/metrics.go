package websocket

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records hub activity. A nil *Metrics records nothing.
type Metrics struct {
	connections metric.Int64UpDownCounter
	messages    metric.Int64Counter
	dropped     metric.Int64Counter
}

// NewMetrics creates the hub instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	connections, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of connected dashboard clients"),
	)
	if err != nil {
		return nil, err
	}

	messages, err := meter.Int64Counter(
		"websocket_messages",
		metric.WithDescription("Messages broadcast by type"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"websocket_dropped_clients",
		metric.WithDescription("Clients disconnected because their send buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{connections: connections, messages: messages, dropped: dropped}, nil
}

func (m *Metrics) connectionDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, delta)
}

func (m *Metrics) messagePublished(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msgType)))
}

func (m *Metrics) clientDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1)
}
