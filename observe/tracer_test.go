package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/memocache/cache"
)

func newTestTracer() (Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewTracer(tp.Tracer("test")), rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]attribute.Value {
	m := make(map[string]attribute.Value)
	for _, a := range s.Attributes() {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestMemberMeta_SpanName(t *testing.T) {
	meta := MemberMeta{Name: "Catalog.Lookup"}
	if got := meta.SpanName(); got != "memo.compute.Catalog.Lookup" {
		t.Errorf("SpanName() = %q, want %q", got, "memo.compute.Catalog.Lookup")
	}
}

func TestMetaFromEvent(t *testing.T) {
	ev := cache.Event{Member: "Profile.FullName", Kind: cache.KindAccessor, Key: "memo:abc", Tags: []string{"profiles"}}
	meta := MetaFromEvent(ev)

	if meta.Name != "Profile.FullName" || meta.Kind != "accessor" {
		t.Errorf("MetaFromEvent = %+v", meta)
	}
	if len(meta.Tags) != 1 || meta.Tags[0] != "profiles" {
		t.Errorf("Tags = %v, want [profiles]", meta.Tags)
	}
}

func TestTracer_SpanAttributes(t *testing.T) {
	tr, rec := newTestTracer()
	meta := MemberMeta{Name: "Catalog.Lookup", Kind: "method", Tags: []string{"catalog", "products"}}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]

	if s.Name() != "memo.compute.Catalog.Lookup" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindInternal {
		t.Errorf("span kind = %v, want internal", s.SpanKind())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}

	attrs := spanAttrs(s)
	if v := attrs["memo.member"]; v.AsString() != "Catalog.Lookup" {
		t.Errorf("memo.member = %q", v.AsString())
	}
	if v := attrs["memo.kind"]; v.AsString() != "method" {
		t.Errorf("memo.kind = %q", v.AsString())
	}
	if v := attrs["memo.tags"]; len(v.AsStringSlice()) != 2 {
		t.Errorf("memo.tags = %v", v.AsStringSlice())
	}
	if v, ok := attrs["memo.error"]; !ok || v.AsBool() {
		t.Errorf("memo.error = %v, want false", v.AsBool())
	}
}

func TestTracer_NoTagsAttribute(t *testing.T) {
	tr, rec := newTestTracer()

	_, span := tr.StartSpan(context.Background(), MemberMeta{Name: "Profile.FullName", Kind: "accessor"})
	tr.EndSpan(span, nil)

	if _, ok := spanAttrs(rec.Ended()[0])["memo.tags"]; ok {
		t.Error("memo.tags should be absent when the member has no tags")
	}
}

func TestTracer_ErrorRecording(t *testing.T) {
	tr, rec := newTestTracer()

	_, span := tr.StartSpan(context.Background(), MemberMeta{Name: "Report.Build", Kind: "method"})
	tr.EndSpan(span, errors.New("upstream unavailable"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if s.Status().Description != "upstream unavailable" {
		t.Errorf("description = %q", s.Status().Description)
	}
	if v := spanAttrs(s)["memo.error"]; !v.AsBool() {
		t.Error("memo.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}

func TestTracer_ContextPropagation(t *testing.T) {
	tr, rec := newTestTracer()

	parentCtx, parent := tr.StartSpan(context.Background(), MemberMeta{Name: "Outer.Call"})
	_, child := tr.StartSpan(parentCtx, MemberMeta{Name: "Inner.Call"})
	tr.EndSpan(child, nil)
	tr.EndSpan(parent, nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	inner, outer := spans[0], spans[1]
	if inner.Parent().SpanID() != outer.SpanContext().SpanID() {
		t.Error("inner span should be a child of the outer span")
	}
}

func TestNewTracer_Nil(t *testing.T) {
	tr := NewTracer(nil)
	ctx, span := tr.StartSpan(context.Background(), MemberMeta{Name: "x"})
	if ctx == nil || span == nil {
		t.Fatal("no-op tracer returned nil context or span")
	}
	tr.EndSpan(span, errors.New("ignored"))
}
