// Package otel provides OpenTelemetry instrumentation utilities for the roster server.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by every span the server records
const (
	AttrRunID            = attribute.Key("roster.run_id")
	AttrStage            = attribute.Key("roster.pipeline.stage")
	AttrParticipantCount = attribute.Key("roster.participant.count")
	AttrStudentCount     = attribute.Key("roster.student.count")
	AttrErrorKind        = attribute.Key("roster.error.kind")
	AttrTrigger          = attribute.Key("roster.refresh.trigger")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
// This provides graceful degradation when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic; the error itself is attached as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
