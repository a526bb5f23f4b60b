package tracker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/problem"
)

func TestDispatcher_NotifyDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	d := NewDispatcher(Func(func(context.Context, error, Meta) {
		<-release
		calls.Add(1)
	}), logger.Nop())

	start := time.Now()
	d.Notify(context.Background(), errors.New("boom"), Meta{Engine: "users"})
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Notify blocked on the tracker")
	}
	close(release)
	d.Wait()
	if calls.Load() != 1 {
		t.Errorf("tracker called %d times, want 1", calls.Load())
	}
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "error", Format: "json"}, "test", &buf)
	d := NewDispatcher(Func(func(context.Context, error, Meta) {
		panic("tracker exploded")
	}), log)

	d.Notify(context.Background(), errors.New("boom"), Meta{})
	d.Wait()
	if !strings.Contains(buf.String(), "error tracker panicked") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestDispatcher_DetachesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sawErr atomic.Value
	d := NewDispatcher(Func(func(ctx context.Context, _ error, _ Meta) {
		sawErr.Store(ctx.Err() == nil)
	}), logger.Nop())

	d.Notify(ctx, errors.New("boom"), Meta{})
	d.Wait()
	if ok, _ := sawErr.Load().(bool); !ok {
		t.Error("tracker context should not be cancelled")
	}
}

func TestDispatcher_NilSafe(t *testing.T) {
	var d *Dispatcher
	d.Notify(context.Background(), errors.New("x"), Meta{})

	d = NewDispatcher(nil, logger.Nop())
	d.Notify(context.Background(), nil, Meta{})
	d.Wait()
}

func TestLoggerTracker(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "test", &buf)

	NewLogger(log).Track(context.Background(),
		&problem.Details{Status: 404, Title: "Not Found"},
		Meta{Engine: "users", Kind: "query", Method: "GET", URL: "http://h/users/1", Generation: 3, Attempt: 1})

	out := buf.String()
	for _, want := range []string{`"title":"Not Found"`, `"status":404`, `"engine":"users"`, `"generation":3`, `"method":"GET"`, `"operation":"query"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestSpanTracker(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	NewSpan().Track(context.Background(), problem.ConnectionFailed(5, nil), Meta{Engine: "events"})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "querykit.problem" || len(spans[0].Events) != 1 {
		t.Errorf("unexpected span: %s events=%d", spans[0].Name, len(spans[0].Events))
	}
}

func TestMulti(t *testing.T) {
	var a, b atomic.Int32
	m := Multi(
		Func(func(context.Context, error, Meta) { a.Add(1) }),
		nil,
		Func(func(context.Context, error, Meta) { b.Add(1) }),
	)
	m.Track(context.Background(), errors.New("x"), Meta{})
	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("calls = %d, %d", a.Load(), b.Load())
	}
}
