package telemetry

import (
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// NewPrometheusMeterProvider builds a MeterProvider backed by a
// Prometheus exporter registered on prometheus.DefaultRegisterer, for
// hosts that want to serve /metrics. Metrics only; this pipeline has no
// tracing concern to wire a TracerProvider for.
func NewPrometheusMeterProvider(serviceName string) (*sdkmetric.MeterProvider, error) {
	if serviceName == "" {
		serviceName = "babelstream"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	exp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	), nil
}
