// Package tracing provides the single tracer the monitor installs for probe
// cycles and stats-engine passes, generalizing the teacher engine's
// internal/telemetry/tracing package to a real go.opentelemetry.io/otel SDK
// tracer instead of a hand-rolled span type.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans for the monitor's internal operations.
type Tracer struct {
	tr trace.Tracer
}

// New builds a Tracer. When sample is false an always-off sampler is used,
// so spans are created (downstream code keeps working identically) but
// never recorded — mirroring the teacher's "adaptive tracer, always
// constructed" default.
func New(name string, sample bool) (*Tracer, func(context.Context) error) {
	sampler := sdktrace.AlwaysSample()
	if !sample {
		sampler = sdktrace.NeverSample()
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler))
	otel.SetTracerProvider(provider)
	return &Tracer{tr: provider.Tracer(name)}, provider.Shutdown
}

// StartSpan starts a span named op under ctx. A nil *Tracer (the zero value
// callers get before tracing.New has run, e.g. in package tests that build a
// Pool/Engine directly) is valid: it returns ctx unchanged and whatever span
// is already attached to it, so callers never need a nil check of their own.
func (t *Tracer) StartSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	if t == nil || t.tr == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tr.Start(ctx, op)
}
