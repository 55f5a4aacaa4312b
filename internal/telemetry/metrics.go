package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the vendor client, the poller and
// the dispatcher.
type Metrics struct {
	requests      metric.Int64Counter
	duration      metric.Float64Histogram
	transitions   metric.Int64Counter
	notifications metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	m.requests, err = meter.Int64Counter(
		"skuwatch_requests_total",
		metric.WithDescription("Vendor API requests by endpoint and result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"skuwatch_request_duration_seconds",
		metric.WithDescription("Duration of vendor API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	m.transitions, err = meter.Int64Counter(
		"skuwatch_transitions_total",
		metric.WithDescription("Stock state transitions by resulting state"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition counter: %w", err)
	}

	m.notifications, err = meter.Int64Counter(
		"skuwatch_notifications_total",
		metric.WithDescription("Notification sends by channel, event and result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification counter: %w", err)
	}

	return &m, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ObserveRequest(ctx context.Context, endpoint string, d time.Duration, err error) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("result", result(err)),
	))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

func (m *Metrics) RecordTransition(ctx context.Context, sku string, inStock bool) {
	state := "out_of_stock"
	if inStock {
		state = "in_stock"
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
		attribute.String("sku", sku),
	))
}

func (m *Metrics) RecordNotification(ctx context.Context, channel, event string, err error) {
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("event", event),
		attribute.String("result", result(err)),
	))
}
