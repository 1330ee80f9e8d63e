package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry holds the tracer and meter providers handed to the roster app,
// plus the Prometheus scrape handler when that exporter is enabled.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler

	mu        sync.Mutex
	shutdowns []func(context.Context) error
}

// Option is a function that configures the telemetry setup
type Option func(*telemetryConfig)

type telemetryConfig struct {
	config *Config
}

// WithTelemetryConfig sets the telemetry configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// ProviderOption configures NewTracerProvider and NewMeterProvider
type ProviderOption func(*providerConfig)

type providerConfig struct {
	serviceName    string
	serviceVersion string
	endpoint       string
	insecure       bool

	// test hooks
	spanExporter sdktrace.SpanExporter
	readers      []sdkmetric.Reader
}

func newProviderConfig(opts []ProviderOption) *providerConfig {
	pc := &providerConfig{
		serviceName:    DefaultServiceName,
		serviceVersion: (&Config{}).GetServiceVersion(),
		endpoint:       DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// WithServiceName sets the service.name resource attribute
func WithServiceName(name string) ProviderOption {
	return func(pc *providerConfig) {
		pc.serviceName = name
	}
}

// WithServiceVersion sets the service.version resource attribute
func WithServiceVersion(version string) ProviderOption {
	return func(pc *providerConfig) {
		pc.serviceVersion = version
	}
}

// WithEndpoint sets the OTLP collector address
func WithEndpoint(endpoint string) ProviderOption {
	return func(pc *providerConfig) {
		pc.endpoint = endpoint
	}
}

// WithInsecure sends OTLP data over plain HTTP
func WithInsecure(insecure bool) ProviderOption {
	return func(pc *providerConfig) {
		pc.insecure = insecure
	}
}

// WithSpanExporter exports spans synchronously to exporter instead of OTLP
func WithSpanExporter(exporter sdktrace.SpanExporter) ProviderOption {
	return func(pc *providerConfig) {
		pc.spanExporter = exporter
	}
}

// WithMetricReader attaches an extra reader to the meter provider
func WithMetricReader(reader sdkmetric.Reader) ProviderOption {
	return func(pc *providerConfig) {
		pc.readers = append(pc.readers, reader)
	}
}

func (pc *providerConfig) resource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(pc.serviceName),
			semconv.ServiceVersion(pc.serviceVersion),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func (c *Config) providerOptions() []ProviderOption {
	return []ProviderOption{
		WithServiceName(c.GetServiceName()),
		WithServiceVersion(c.GetServiceVersion()),
		WithEndpoint(c.GetEndpoint()),
		WithInsecure(c.GetInsecure()),
	}
}

// New builds the providers described by the telemetry configuration. A nil
// or disabled configuration yields no-op providers. Call Shutdown on exit.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	tc := &telemetryConfig{}
	for _, opt := range opts {
		opt(tc)
	}

	cfg := tc.config
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		return &Telemetry{
			tracerProvider: tracenoop.NewTracerProvider(),
			meterProvider:  metricnoop.NewMeterProvider(),
		}, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	providerOpts := cfg.providerOptions()
	t := &Telemetry{}

	tp, err := NewTracerProvider(ctx, cfg.Tracing, providerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	t.tracerProvider = tp
	t.track(tp)

	mp, handler, err := NewMeterProvider(ctx, cfg.Metrics, providerOpts...)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}
	t.meterProvider = mp
	t.metricsHandler = handler
	t.track(mp)

	slog.Info("Telemetry initialized",
		"service_name", cfg.GetServiceName(),
		"service_version", cfg.GetServiceVersion(),
		"tracing", cfg.Tracing != nil && cfg.Tracing.Enabled,
		"metrics", cfg.Metrics != nil && cfg.Metrics.Enabled,
		"prometheus", handler != nil,
	)

	return t, nil
}

// track registers an SDK provider for Shutdown. No-op providers are ignored.
func (t *Telemetry) track(provider any) {
	if s, ok := provider.(interface{ Shutdown(context.Context) error }); ok {
		t.mu.Lock()
		t.shutdowns = append(t.shutdowns, s.Shutdown)
		t.mu.Unlock()
	}
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, nil unless the
// prometheus exporter is enabled
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Shutdown flushes and stops the providers, most recently created first.
// Later calls are no-ops.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	shutdowns := t.shutdowns
	t.shutdowns = nil
	t.mu.Unlock()

	if len(shutdowns) == 0 {
		return nil
	}

	slog.Info("Shutting down telemetry")
	var errs []error
	for _, shutdown := range slices.Backward(shutdowns) {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
