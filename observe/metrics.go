package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache activity for memoized members.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordHit counts a call served from the cache.
	RecordHit(ctx context.Context, meta MemberMeta)

	// RecordMiss counts a computation, its duration and whether it failed.
	RecordMiss(ctx context.Context, meta MemberMeta, duration time.Duration, err error)

	// RecordEviction counts an entry dropped by capacity or age.
	RecordEviction(ctx context.Context, meta MemberMeta)

	// RecordClear counts the stores emptied by a tag clear.
	RecordClear(ctx context.Context, tags []string, stores int)
}

type metricsImpl struct {
	hits         metric.Int64Counter
	misses       metric.Int64Counter
	errors       metric.Int64Counter
	durationHist metric.Float64Histogram
	evictions    metric.Int64Counter
	clears       metric.Int64Counter
}

// NewMetrics creates the memo.* instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.hits, err = meter.Int64Counter("memo.hits",
		metric.WithDescription("Calls served from the cache"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.misses, err = meter.Int64Counter("memo.misses",
		metric.WithDescription("Calls that ran the underlying computation"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.errors, err = meter.Int64Counter("memo.compute.errors",
		metric.WithDescription("Computations that returned an error"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.durationHist, err = meter.Float64Histogram("memo.compute.duration_ms",
		metric.WithDescription("Computation duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.evictions, err = meter.Int64Counter("memo.evictions",
		metric.WithDescription("Entries dropped by capacity or age"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.clears, err = meter.Int64Counter("memo.clears",
		metric.WithDescription("Stores emptied by tag clears"),
		metric.WithUnit("{store}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordHit(ctx context.Context, meta MemberMeta) {
	m.hits.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *metricsImpl) RecordMiss(ctx context.Context, meta MemberMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.misses.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

func (m *metricsImpl) RecordEviction(ctx context.Context, meta MemberMeta) {
	m.evictions.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *metricsImpl) RecordClear(ctx context.Context, tags []string, stores int) {
	m.clears.Add(ctx, int64(stores), metric.WithAttributes(attribute.StringSlice("memo.tags", tags)))
}

type noopMetrics struct{}

func (noopMetrics) RecordHit(context.Context, MemberMeta)                        {}
func (noopMetrics) RecordMiss(context.Context, MemberMeta, time.Duration, error) {}
func (noopMetrics) RecordEviction(context.Context, MemberMeta)                   {}
func (noopMetrics) RecordClear(context.Context, []string, int)                   {}
