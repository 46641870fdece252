package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// TracingCollector implements lending.TracingCollector with the OpenTelemetry tracing API.
// The returned context carries the span, so Store implementations that trace as well produce child spans.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a tracing collector; the tracer should come from your TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span with the given attributes.
func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, lending.SpanContext) {

	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan adds the final attributes, sets the status and ends the span.
// Span contexts from other collectors are ignored.
func (t *TracingCollector) FinishSpan(spanCtx lending.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.setSpanStatus(status)
	otelSpanCtx.span.End()
}

var _ lending.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements lending.SpanContext by wrapping an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus maps the status string to an OpenTelemetry status code.
func (s *OTelSpanContext) SetStatus(status string) {
	s.setSpanStatus(status)
}

// AddAttribute adds a string attribute to the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s *OTelSpanContext) setSpanStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "Operation failed")
	case "cancelled", "canceled":
		s.span.SetStatus(codes.Error, "Operation cancelled")
	case "conflict":
		s.span.SetStatus(codes.Error, "Concurrency conflict")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

var _ lending.SpanContext = (*OTelSpanContext)(nil)
