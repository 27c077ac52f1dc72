package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/memocache/cache"
)

// MemberMeta describes a memoized member for telemetry purposes.
type MemberMeta struct {
	Name string   // member name, e.g. "Catalog.Lookup"
	Kind string   // "method" or "accessor"
	Tags []string // clearing tags (optional)
}

// MetaFromEvent extracts member metadata from a cache event.
func MetaFromEvent(ev cache.Event) MemberMeta {
	return MemberMeta{
		Name: ev.Member,
		Kind: ev.Kind.String(),
		Tags: ev.Tags,
	}
}

// SpanName returns the span name used for a computation of this member.
// Format: memo.compute.<name>
func (m MemberMeta) SpanName() string {
	return "memo.compute." + m.Name
}

func (m MemberMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("memo.member", m.Name),
		attribute.String("memo.kind", m.Kind),
	}
	if len(m.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("memo.tags", m.Tags))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with one span per computation.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for a computation of the member.
	StartSpan(ctx context.Context, meta MemberMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op Tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta MemberMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("memo.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("memo.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta MemberMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
