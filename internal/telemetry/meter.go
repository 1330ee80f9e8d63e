package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const scrapeTimeout = 10 * time.Second

// NewMeterProvider returns an SDK meter provider with one reader per
// configured exporter, or a no-op provider when mc is nil or disabled. The
// returned handler serves /metrics and is nil unless the prometheus
// exporter is configured.
func NewMeterProvider(
	ctx context.Context,
	mc *MetricsConfig,
	opts ...ProviderOption,
) (metric.MeterProvider, http.Handler, error) {
	if mc == nil || !mc.Enabled {
		slog.Debug("Metrics disabled")
		return metricnoop.NewMeterProvider(), nil, nil
	}

	pc := newProviderConfig(opts)
	res, err := pc.resource(ctx)
	if err != nil {
		return nil, nil, err
	}

	readers := slices.Clone(pc.readers)
	var handler http.Handler

	for _, name := range mc.GetExporters() {
		switch name {
		case ExporterOTLP:
			reader, err := newOTLPReader(ctx, pc, mc.GetInterval())
			if err != nil {
				return nil, nil, err
			}
			readers = append(readers, reader)
		case ExporterPrometheus:
			reader, promHandler, err := newPrometheusReader()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
			}
			readers = append(readers, reader)
			handler = promHandler
		default:
			return nil, nil, fmt.Errorf("unknown metrics exporter %q", name)
		}
		slog.Info("Metrics exporter configured", "exporter", name)
	}

	providerOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(mp)
	return mp, handler, nil
}

func newOTLPReader(ctx context.Context, pc *providerConfig, interval time.Duration) (sdkmetric.Reader, error) {
	exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(pc.endpoint)}
	if pc.insecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

// newPrometheusReader registers on a private registry so several providers
// can coexist in one process
func newPrometheusReader() (sdkmetric.Reader, http.Handler, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, err
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Timeout: scrapeTimeout}), nil
}
