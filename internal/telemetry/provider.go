package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ProviderConfig configures the metrics-only OTel SDK setup. Unlike the
// teacher's observe package, georag does not stand up a TracerProvider:
// SPEC_FULL.md's telemetry scope is stage-latency histograms and outcome
// counters, not distributed tracing, so there is nothing here to export
// spans to.
type ProviderConfig struct {
	// ServiceName is reported as the meter provider's resource attribute.
	// Defaults to "georag".
	ServiceName string
}

// InitProvider sets up a sdkmetric.MeterProvider backed by a Prometheus
// exporter bridge and registers it as the global OTel meter provider.
// Returns a shutdown function to call from main() on exit.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "georag"
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExp),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
