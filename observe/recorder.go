package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/memocache/cache"
)

// Recorder reports cache activity through a Tracer, Metrics and Logger.
// It implements cache.Recorder and is safe for concurrent use.
type Recorder struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

var _ cache.Recorder = (*Recorder)(nil)

// NewRecorder builds a Recorder from an Observer's tracer, meter and logger.
func NewRecorder(obs Observer) (*Recorder, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	m, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return RecorderFromParts(NewTracer(obs.Tracer()), m, obs.Logger()), nil
}

// RecorderFromParts assembles a Recorder from individual components.
// Nil components are replaced with no-ops.
func RecorderFromParts(tracer Tracer, metrics Metrics, logger Logger) *Recorder {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
	}
	return &Recorder{tracer: tracer, metrics: metrics, logger: logger, now: time.Now}
}

// Hit records a call served from the cache.
func (r *Recorder) Hit(ctx context.Context, ev cache.Event) {
	meta := MetaFromEvent(ev)
	r.metrics.RecordHit(ctx, meta)
	r.logger.WithMember(meta).Debug(ctx, "cache hit", Field{Key: "memo.key", Value: ev.Key})
}

// Compute opens a span for the computation. The returned done records the
// duration and outcome and closes the span.
func (r *Recorder) Compute(ctx context.Context, ev cache.Event) (context.Context, func(error)) {
	meta := MetaFromEvent(ev)
	start := r.now()
	ctx, span := r.tracer.StartSpan(ctx, meta)

	return ctx, func(err error) {
		duration := r.now().Sub(start)
		r.tracer.EndSpan(span, err)
		r.metrics.RecordMiss(ctx, meta, duration, err)

		log := r.logger.WithMember(meta)
		if err != nil {
			log.Error(ctx, "computation failed",
				Field{Key: "memo.key", Value: ev.Key},
				Field{Key: "error", Value: err},
				Field{Key: "duration_ms", Value: duration.Milliseconds()},
			)
			return
		}
		log.Debug(ctx, "computed",
			Field{Key: "memo.key", Value: ev.Key},
			Field{Key: "duration_ms", Value: duration.Milliseconds()},
		)
	}
}

// Evict records an entry dropped by capacity or age.
func (r *Recorder) Evict(ev cache.Event) {
	ctx := context.Background()
	meta := MetaFromEvent(ev)
	r.metrics.RecordEviction(ctx, meta)
	r.logger.WithMember(meta).Debug(ctx, "entry evicted", Field{Key: "memo.key", Value: ev.Key})
}

// Cleared records a tag clear and the number of stores it emptied.
func (r *Recorder) Cleared(tags []string, stores int) {
	ctx := context.Background()
	r.metrics.RecordClear(ctx, tags, stores)
	r.logger.Info(ctx, "tags cleared",
		Field{Key: "memo.tags", Value: tags},
		Field{Key: "stores", Value: stores},
	)
}
