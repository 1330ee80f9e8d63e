package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RosterMetricsMeterName is the name used for the roster metrics meter
	RosterMetricsMeterName = "github.com/stacklok/studio-roster/roster"

	// SyncMetricsMeterName is the name used for the refresh metrics meter
	SyncMetricsMeterName = "github.com/stacklok/studio-roster/sync"
)

// RosterMetrics holds the OpenTelemetry instruments describing the published roster
type RosterMetrics struct {
	studentsTotal   metric.Int64Gauge
	refreshRequests metric.Int64Counter
}

// NewRosterMetrics creates a new RosterMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRosterMetrics(provider metric.MeterProvider) (*RosterMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RosterMetricsMeterName)

	studentsTotal, err := meter.Int64Gauge(
		"roster_students",
		metric.WithDescription("Number of students in the published roster"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	refreshRequests, err := meter.Int64Counter(
		"roster_refresh_requests",
		metric.WithDescription("Number of out-of-cycle refresh requests received"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &RosterMetrics{
		studentsTotal:   studentsTotal,
		refreshRequests: refreshRequests,
	}, nil
}

// RecordStudentsTotal records the size of the roster just published
func (m *RosterMetrics) RecordStudentsTotal(ctx context.Context, count int64) {
	if m == nil || m.studentsTotal == nil {
		return
	}
	m.studentsTotal.Record(ctx, count)
}

// RecordRefreshRequest counts one forced refresh request
func (m *RosterMetrics) RecordRefreshRequest(ctx context.Context) {
	if m == nil || m.refreshRequests == nil {
		return
	}
	m.refreshRequests.Add(ctx, 1)
}

// SyncMetrics holds the OpenTelemetry instruments for refresh runs
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
	syncFailures metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"roster_refresh_duration_seconds",
		metric.WithDescription("Duration of roster refresh runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	syncFailures, err := meter.Int64Counter(
		"roster_refresh_failures",
		metric.WithDescription("Number of failed refresh runs by failure kind"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
		syncFailures: syncFailures,
	}, nil
}

// RecordSyncDuration records the duration of one refresh run. trigger names
// what started the run (startup, interval or manual).
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, duration time.Duration, success bool, trigger string) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
		attribute.String("trigger", trigger),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSyncFailure counts a failed run under its error kind
func (m *SyncMetrics) RecordSyncFailure(ctx context.Context, kind string) {
	if m == nil || m.syncFailures == nil {
		return
	}
	m.syncFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
