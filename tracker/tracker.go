// Package tracker reports surfaced problems to an external error tracker
// without ever blocking or failing the engine that raised them.
package tracker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/observability"
	"github.com/kbukum/querykit/problem"
)

// Meta describes where a tracked error came from.
type Meta struct {
	// Engine is the engine instance name.
	Engine string
	// Kind is "query" or "stream".
	Kind       string
	Method     string
	URL        string
	Generation uint64
	Attempt    int
	SessionID  string
}

// Tracker receives problems surfaced by the engines.
type Tracker interface {
	Track(ctx context.Context, err error, meta Meta)
}

// Func adapts a function to Tracker.
type Func func(ctx context.Context, err error, meta Meta)

// Track calls f.
func (f Func) Track(ctx context.Context, err error, meta Meta) { f(ctx, err, meta) }

// Dispatcher invokes a Tracker in its own goroutine, recovering panics so a
// faulty tracker cannot affect the caller. Wait blocks until in-flight calls
// finish.
type Dispatcher struct {
	tracker Tracker
	log     *logger.Logger
	wg      sync.WaitGroup
}

// NewDispatcher wraps t. A nil t falls back to the logger tracker.
func NewDispatcher(t Tracker, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.WithComponent("tracker")
	}
	if t == nil {
		t = NewLogger(log)
	}
	return &Dispatcher{tracker: t, log: log}
}

// Notify schedules a Track call and returns immediately. The call runs with a
// context detached from ctx's cancellation so aborting a request does not
// drop its report.
func (d *Dispatcher) Notify(ctx context.Context, err error, meta Meta) {
	if d == nil || err == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("error tracker panicked", logger.Fields(
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				))
			}
		}()
		d.tracker.Track(ctx, err, meta)
	}()
}

// Wait blocks until every scheduled call has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// NewLogger returns a Tracker that writes each problem as an error log line.
func NewLogger(log *logger.Logger) Tracker {
	return Func(func(ctx context.Context, err error, meta Meta) {
		fields := logger.ErrorFields(meta.Kind, err)
		fields["engine"] = meta.Engine
		fields[logger.FieldGeneration] = meta.Generation
		if meta.URL != "" {
			fields[logger.FieldURL] = meta.URL
		}
		if meta.Method != "" {
			fields[logger.FieldMethod] = meta.Method
		}
		if meta.Attempt > 0 {
			fields[logger.FieldAttempt] = meta.Attempt
		}
		if meta.SessionID != "" {
			fields[logger.FieldSessionID] = meta.SessionID
		}
		if p, ok := problem.As(err); ok {
			fields[logger.FieldStatus] = p.Status
			fields["title"] = p.Title
		}
		log.WithContext(ctx).Error("problem surfaced", fields)
	})
}

// NewSpan returns a Tracker that records each problem on the span carried by
// ctx, or on a short span of its own when ctx has none.
func NewSpan() Tracker {
	return Func(func(ctx context.Context, err error, meta Meta) {
		span := trace.SpanFromContext(ctx)
		if !span.SpanContext().IsValid() {
			_, span = observability.StartSpan(ctx, "querykit.problem")
			defer span.End()
		}
		attrs := []attribute.KeyValue{
			attribute.String(observability.AttrEngine, meta.Engine),
			attribute.Int64(observability.AttrGeneration, int64(meta.Generation)),
		}
		if p, ok := problem.As(err); ok {
			attrs = append(attrs,
				attribute.String(observability.AttrProblem, p.Title),
				attribute.Int(observability.AttrStatus, p.Status),
			)
		}
		span.RecordError(err, trace.WithAttributes(attrs...))
		span.SetStatus(codes.Error, err.Error())
	})
}

// Multi reports to every tracker in order.
func Multi(trackers ...Tracker) Tracker {
	return Func(func(ctx context.Context, err error, meta Meta) {
		for _, t := range trackers {
			if t != nil {
				t.Track(ctx, err, meta)
			}
		}
	})
}
