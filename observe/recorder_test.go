package observe

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/memocache/cache"
)

type widget struct {
	cache.Instance
	calls int
}

func traceSpanID(ctx context.Context) string {
	return trace.SpanContextFromContext(ctx).SpanID().String()
}

type recorderHarness struct {
	rec    *Recorder
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newRecorderHarness(t *testing.T) *recorderHarness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	m, reader := newTestMetrics(t)
	logs := &bytes.Buffer{}

	return &recorderHarness{
		rec:    RecorderFromParts(NewTracer(tp.Tracer("test")), m, NewLoggerWithWriter("debug", logs)),
		spans:  spans,
		reader: reader,
		logs:   logs,
	}
}

func TestRecorder_HitsAndMisses(t *testing.T) {
	h := newRecorderHarness(t)
	lookup := cache.MustMethod(func(_ context.Context, w *widget, args ...any) (string, error) {
		w.calls++
		return strings.ToUpper(args[0].(string)), nil
	}, cache.Options{Name: "Widget.Lookup", Registry: cache.NewTagRegistry(), Recorder: h.rec})

	w := &widget{}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := lookup.Call(ctx, w, "a"); err != nil {
			t.Fatalf("Call error: %v", err)
		}
	}

	rm := collect(t, h.reader)
	if got := sumValue(t, rm, "memo.misses"); got != 1 {
		t.Errorf("memo.misses = %d, want 1", got)
	}
	if got := sumValue(t, rm, "memo.hits"); got != 2 {
		t.Errorf("memo.hits = %d, want 2", got)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 compute span, got %d", len(spans))
	}
	if spans[0].Name() != "memo.compute.Widget.Lookup" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if !strings.Contains(h.logs.String(), `"msg":"cache hit"`) {
		t.Errorf("expected a cache hit log entry, got:\n%s", h.logs.String())
	}
}

func TestRecorder_ComputeContextCarriesSpan(t *testing.T) {
	h := newRecorderHarness(t)
	var inner context.Context
	traced := cache.MustMethod(func(ctx context.Context, _ *widget, _ ...any) (int, error) {
		inner = ctx
		return 1, nil
	}, cache.Options{Name: "Widget.Probe", Registry: cache.NewTagRegistry(), Recorder: h.rec})

	if _, err := traced.Call(context.Background(), &widget{}); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := traceSpanID(inner); got != spans[0].SpanContext().SpanID().String() {
		t.Errorf("computation context span = %s, want %s", got, spans[0].SpanContext().SpanID())
	}
}

func TestRecorder_ComputeError(t *testing.T) {
	h := newRecorderHarness(t)
	boom := errors.New("boom")
	fail := cache.MustMethod(func(_ context.Context, _ *widget, _ ...any) (int, error) {
		return 0, boom
	}, cache.Options{Name: "Widget.Fail", Registry: cache.NewTagRegistry(), Recorder: h.rec})

	if _, err := fail.Call(context.Background(), &widget{}, 1); !errors.Is(err, boom) {
		t.Fatalf("Call error = %v, want boom", err)
	}

	rm := collect(t, h.reader)
	if got := sumValue(t, rm, "memo.compute.errors"); got != 1 {
		t.Errorf("memo.compute.errors = %d, want 1", got)
	}
	if s := h.spans.Ended()[0]; s.Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", s.Status().Code)
	}
	if !strings.Contains(h.logs.String(), `"error":"boom"`) {
		t.Errorf("expected the error in the log, got:\n%s", h.logs.String())
	}
}

func TestRecorder_Eviction(t *testing.T) {
	h := newRecorderHarness(t)
	echo := cache.MustMethod(func(_ context.Context, _ *widget, args ...any) (any, error) {
		return args[0], nil
	}, cache.Options{Name: "Widget.Echo", MaxSize: 1, Registry: cache.NewTagRegistry(), Recorder: h.rec})

	w := &widget{}
	_, _ = echo.Call(context.Background(), w, "a")
	_, _ = echo.Call(context.Background(), w, "b")

	if got := sumValue(t, collect(t, h.reader), "memo.evictions"); got != 1 {
		t.Errorf("memo.evictions = %d, want 1", got)
	}
}

func TestRecorder_Cleared(t *testing.T) {
	h := newRecorderHarness(t)
	reg := cache.NewTagRegistry()
	reg.SetRecorder(h.rec)

	echo := cache.MustMethod(func(_ context.Context, _ *widget, args ...any) (any, error) {
		return args[0], nil
	}, cache.Options{Name: "Widget.Echo", Tags: []string{"widgets"}, Registry: reg, Recorder: h.rec})

	w1, w2 := &widget{}, &widget{}
	_, _ = echo.Call(context.Background(), w1, "a")
	_, _ = echo.Call(context.Background(), w2, "a")

	if n := reg.Clear("widgets"); n != 2 {
		t.Fatalf("Clear = %d, want 2", n)
	}
	runtime.KeepAlive(w1)
	runtime.KeepAlive(w2)

	if got := sumValue(t, collect(t, h.reader), "memo.clears"); got != 2 {
		t.Errorf("memo.clears = %d, want 2", got)
	}
	if !strings.Contains(h.logs.String(), `"msg":"tags cleared"`) {
		t.Errorf("expected a tags cleared log entry, got:\n%s", h.logs.String())
	}
}

func TestRecorder_Duration(t *testing.T) {
	h := newRecorderHarness(t)
	base := time.Unix(0, 0)
	ticks := []time.Time{base, base.Add(40 * time.Millisecond)}
	h.rec.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	_, done := h.rec.Compute(context.Background(), cache.Event{Member: "Widget.Slow", Kind: cache.KindMethod})
	done(nil)

	found := findMetric(collect(t, h.reader), "memo.compute.duration_ms")
	if found == nil {
		t.Fatal("memo.compute.duration_ms not found")
	}
	if found.Data == nil {
		t.Fatal("no histogram data")
	}
	if !strings.Contains(h.logs.String(), `"duration_ms":40`) {
		t.Errorf("expected duration_ms 40 in log, got:\n%s", h.logs.String())
	}
}

func TestNewRecorder(t *testing.T) {
	if _, err := NewRecorder(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("NewRecorder(nil) error = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "svc"})
	if err != nil {
		t.Fatalf("NewObserver error: %v", err)
	}
	rec, err := NewRecorder(obs)
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}

	echo := cache.MustMethod(func(_ context.Context, _ *widget, args ...any) (any, error) {
		return args[0], nil
	}, cache.Options{Registry: cache.NewTagRegistry(), Recorder: rec})
	if v, err := echo.Call(context.Background(), &widget{}, 7); err != nil || v != 7 {
		t.Fatalf("Call = %v, %v", v, err)
	}
}

func TestRecorderFromParts_Nil(t *testing.T) {
	rec := RecorderFromParts(nil, nil, nil)
	ctx, done := rec.Compute(context.Background(), cache.Event{Member: "x"})
	if ctx == nil {
		t.Fatal("nil context")
	}
	done(errors.New("ignored"))
	rec.Hit(ctx, cache.Event{Member: "x"})
	rec.Evict(cache.Event{Member: "x"})
	rec.Cleared([]string{"t"}, 0)
}
