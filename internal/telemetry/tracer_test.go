package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]*TracingConfig{
		"nil config":       nil,
		"tracing disabled": {Enabled: false, Sampling: 1.0},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tp, err := NewTracerProvider(context.Background(), tc)
			require.NoError(t, err)
			_, ok := tp.(noop.TracerProvider)
			assert.True(t, ok, "expected no-op tracer provider")
		})
	}
}

func TestNewTracerProvider_OTLP(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tp, err := NewTracerProvider(ctx, &TracingConfig{Enabled: true},
		WithEndpoint(fakeCollector(t)),
		WithInsecure(true),
	)
	require.NoError(t, err)

	sdkTP, ok := tp.(*sdktrace.TracerProvider)
	require.True(t, ok, "expected SDK tracer provider")
	require.NoError(t, sdkTP.Shutdown(ctx))
}

func TestNewTracerProvider_ResourceAttributes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(ctx, &TracingConfig{Enabled: true, Sampling: 1.0},
		WithServiceName("roster-test"),
		WithServiceVersion("1.4.0"),
		WithSpanExporter(exporter),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.(*sdktrace.TracerProvider).Shutdown(ctx) })

	_, span := tp.Tracer("test").Start(ctx, "pipeline.run")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "pipeline.run", spans[0].Name)

	attrs := spans[0].Resource.Set()
	name, ok := attrs.Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "roster-test", name.AsString())
	version, ok := attrs.Value(attribute.Key("service.version"))
	require.True(t, ok)
	assert.Equal(t, "1.4.0", version.AsString())
}

func TestProviderOptions(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	pc := newProviderConfig([]ProviderOption{
		WithServiceName("roster-api-staging"),
		WithEndpoint("collector.internal:4318"),
		WithInsecure(true),
		WithSpanExporter(exporter),
	})

	assert.Equal(t, "roster-api-staging", pc.serviceName)
	assert.Equal(t, (&Config{}).GetServiceVersion(), pc.serviceVersion)
	assert.Equal(t, "collector.internal:4318", pc.endpoint)
	assert.True(t, pc.insecure)
	assert.Same(t, exporter, pc.spanExporter)

	defaults := newProviderConfig(nil)
	assert.Equal(t, DefaultServiceName, defaults.serviceName)
	assert.Equal(t, DefaultEndpoint, defaults.endpoint)
	assert.False(t, defaults.insecure)
}
