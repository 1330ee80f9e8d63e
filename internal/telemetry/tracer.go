package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NewTracerProvider returns an SDK tracer provider exporting to the OTLP
// collector, or a no-op provider when tc is nil or disabled. The SDK
// provider is installed globally together with the W3C propagators.
func NewTracerProvider(ctx context.Context, tc *TracingConfig, opts ...ProviderOption) (trace.TracerProvider, error) {
	if tc == nil || !tc.Enabled {
		slog.Debug("Tracing disabled")
		return tracenoop.NewTracerProvider(), nil
	}

	pc := newProviderConfig(opts)
	res, err := pc.resource(ctx)
	if err != nil {
		return nil, err
	}

	var processor sdktrace.TracerProviderOption
	if pc.spanExporter != nil {
		processor = sdktrace.WithSyncer(pc.spanExporter)
	} else {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(pc.endpoint)}
		if pc.insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		processor = sdktrace.WithBatcher(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.GetSampling()))),
		processor,
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("Tracing enabled",
		"endpoint", pc.endpoint,
		"sampling_ratio", tc.GetSampling(),
		"insecure", pc.insecure,
	)
	return tp, nil
}
