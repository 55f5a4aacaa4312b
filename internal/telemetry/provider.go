// Package telemetry wires OpenTelemetry metrics and the local status server.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
)

var ErrUnknownExporter = errors.New("unknown metrics exporter")

type Config struct {
	Exporter     string
	OTLPEndpoint string
	ServiceName  string
}

// Provider owns the meter provider for the configured exporter.
type Provider struct {
	exporter string
	mp       *metric.MeterProvider
	meter    api.Meter
	handler  http.Handler
}

// Setup builds the meter provider. With the prometheus exporter the scrape
// handler is available from MetricsHandler; with "none" a noop meter is used.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	const op = "telemetry.Setup"

	name := cfg.ServiceName
	if name == "" {
		name = "skuwatch"
	}
	p := &Provider{exporter: cfg.Exporter}

	switch cfg.Exporter {
	case "", ExporterNone:
		p.exporter = ExporterNone
		p.meter = noop.NewMeterProvider().Meter(name)
		return p, nil

	case ExporterPrometheus:
		// a private registry keeps repeated setups from colliding
		reg := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("%s: creating prometheus exporter: %w", op, err)
		}
		p.mp = metric.NewMeterProvider(metric.WithReader(exporter))
		p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	case ExporterOTLP:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s: creating otlp exporter: %w", op, err)
		}
		p.mp = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))

	default:
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownExporter, cfg.Exporter)
	}

	otel.SetMeterProvider(p.mp)
	p.meter = p.mp.Meter(name)
	slog.Info("metrics enabled", "exporter", p.exporter)
	return p, nil
}

func (p *Provider) Meter() api.Meter {
	return p.meter
}

// MetricsHandler returns the prometheus scrape handler, or nil when metrics
// are not scraped.
func (p *Provider) MetricsHandler() http.Handler {
	return p.handler
}

func (p *Provider) Exporter() string {
	return p.exporter
}

// Shutdown flushes pending metrics and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.mp == nil {
		return nil
	}
	if err := p.mp.ForceFlush(ctx); err != nil {
		slog.Warn("metrics flush failed", "error", err)
	}
	return p.mp.Shutdown(ctx)
}
