package observability

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/querykit/problem"
)

// Recorder receives engine measurements. Implementations must be safe for
// concurrent use. name identifies the engine instance.
type Recorder interface {
	// Attempt records one transport exchange. status is 0 for transport failures.
	Attempt(ctx context.Context, name string, status int, d time.Duration)
	// Retry records that attempt failed and another will follow after delay.
	Retry(ctx context.Context, name string, attempt int, delay time.Duration)
	// Problem records a problem published to state.
	Problem(ctx context.Context, name string, p *problem.Details)
	// Reconnect records a stream reconnect attempt.
	Reconnect(ctx context.Context, name string, attempt int)
	// StreamEvent records a stream message; parsed is false on decode failure.
	StreamEvent(ctx context.Context, name string, parsed bool)
}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) Attempt(context.Context, string, int, time.Duration) {}
func (nopRecorder) Retry(context.Context, string, int, time.Duration) {}
func (nopRecorder) Problem(context.Context, string, *problem.Details) {}
func (nopRecorder) Reconnect(context.Context, string, int) {}
func (nopRecorder) StreamEvent(context.Context, string, bool) {}

// Multi fans measurements out to several recorders.
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

type multiRecorder []Recorder

func (m multiRecorder) Attempt(ctx context.Context, name string, status int, d time.Duration) {
	for _, r := range m {
		r.Attempt(ctx, name, status, d)
	}
}

func (m multiRecorder) Retry(ctx context.Context, name string, attempt int, delay time.Duration) {
	for _, r := range m {
		r.Retry(ctx, name, attempt, delay)
	}
}

func (m multiRecorder) Problem(ctx context.Context, name string, p *problem.Details) {
	for _, r := range m {
		r.Problem(ctx, name, p)
	}
}

func (m multiRecorder) Reconnect(ctx context.Context, name string, attempt int) {
	for _, r := range m {
		r.Reconnect(ctx, name, attempt)
	}
}

func (m multiRecorder) StreamEvent(ctx context.Context, name string, parsed bool) {
	for _, r := range m {
		r.StreamEvent(ctx, name, parsed)
	}
}

// OTelRecorder reports to OpenTelemetry instruments.
type OTelRecorder struct {
	attempts        metric.Int64Counter
	attemptDuration metric.Float64Histogram
	retries         metric.Int64Counter
	problems        metric.Int64Counter
	reconnects      metric.Int64Counter
	events          metric.Int64Counter
}

var _ Recorder = (*OTelRecorder)(nil)

// NewOTelRecorder creates instruments on meter.
func NewOTelRecorder(meter metric.Meter) (*OTelRecorder, error) {
	r := &OTelRecorder{}
	var err error
	if r.attempts, err = meter.Int64Counter("querykit.attempts",
		metric.WithDescription("Transport exchanges by status")); err != nil {
		return nil, fmt.Errorf("creating querykit.attempts counter: %w", err)
	}
	if r.attemptDuration, err = meter.Float64Histogram("querykit.attempt.duration",
		metric.WithDescription("Duration of transport exchanges"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating querykit.attempt.duration histogram: %w", err)
	}
	if r.retries, err = meter.Int64Counter("querykit.retries",
		metric.WithDescription("Retries after a 5xx response")); err != nil {
		return nil, fmt.Errorf("creating querykit.retries counter: %w", err)
	}
	if r.problems, err = meter.Int64Counter("querykit.problems",
		metric.WithDescription("Problems published to state")); err != nil {
		return nil, fmt.Errorf("creating querykit.problems counter: %w", err)
	}
	if r.reconnects, err = meter.Int64Counter("querykit.stream.reconnects",
		metric.WithDescription("Stream reconnect attempts")); err != nil {
		return nil, fmt.Errorf("creating querykit.stream.reconnects counter: %w", err)
	}
	if r.events, err = meter.Int64Counter("querykit.stream.events",
		metric.WithDescription("Stream messages by parse outcome")); err != nil {
		return nil, fmt.Errorf("creating querykit.stream.events counter: %w", err)
	}
	return r, nil
}

func (r *OTelRecorder) Attempt(ctx context.Context, name string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrEngine, name),
		attribute.Int(AttrStatus, status),
	)
	r.attempts.Add(ctx, 1, attrs)
	r.attemptDuration.Record(ctx, d.Seconds(), attrs)
}

func (r *OTelRecorder) Retry(ctx context.Context, name string, _ int, _ time.Duration) {
	r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrEngine, name)))
}

func (r *OTelRecorder) Problem(ctx context.Context, name string, p *problem.Details) {
	r.problems.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEngine, name),
		attribute.String(AttrProblem, p.Title),
		attribute.Int(AttrStatus, p.Status),
	))
}

func (r *OTelRecorder) Reconnect(ctx context.Context, name string, _ int) {
	r.reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrEngine, name)))
}

func (r *OTelRecorder) StreamEvent(ctx context.Context, name string, parsed bool) {
	r.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEngine, name),
		attribute.String(AttrOutcome, outcome(parsed)),
	))
}

// PrometheusRecorder reports to Prometheus collectors.
type PrometheusRecorder struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	problems        *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	events          *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates the querykit collectors and registers them on
// reg. Collectors already registered on reg are reused.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querykit_attempts_total",
			Help: "Transport exchanges by status",
		}, []string{"engine", "status"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "querykit_attempt_duration_seconds",
			Help:    "Duration of transport exchanges",
			Buckets: prometheus.DefBuckets,
		}, []string{"engine"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querykit_retries_total",
			Help: "Retries after a 5xx response",
		}, []string{"engine"}),
		problems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querykit_problems_total",
			Help: "Problems published to state",
		}, []string{"engine", "title", "status"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querykit_stream_reconnects_total",
			Help: "Stream reconnect attempts",
		}, []string{"engine"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querykit_stream_events_total",
			Help: "Stream messages by parse outcome",
		}, []string{"engine", "outcome"}),
	}

	var err error
	if r.attempts, err = register(reg, r.attempts); err != nil {
		return nil, err
	}
	if r.attemptDuration, err = register(reg, r.attemptDuration); err != nil {
		return nil, err
	}
	if r.retries, err = register(reg, r.retries); err != nil {
		return nil, err
	}
	if r.problems, err = register(reg, r.problems); err != nil {
		return nil, err
	}
	if r.reconnects, err = register(reg, r.reconnects); err != nil {
		return nil, err
	}
	if r.events, err = register(reg, r.events); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("registering collector: %w", err)
	}
	return c, nil
}

func (r *PrometheusRecorder) Attempt(_ context.Context, name string, status int, d time.Duration) {
	r.attempts.WithLabelValues(name, strconv.Itoa(status)).Inc()
	r.attemptDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (r *PrometheusRecorder) Retry(_ context.Context, name string, _ int, _ time.Duration) {
	r.retries.WithLabelValues(name).Inc()
}

func (r *PrometheusRecorder) Problem(_ context.Context, name string, p *problem.Details) {
	r.problems.WithLabelValues(name, p.Title, strconv.Itoa(p.Status)).Inc()
}

func (r *PrometheusRecorder) Reconnect(_ context.Context, name string, _ int) {
	r.reconnects.WithLabelValues(name).Inc()
}

func (r *PrometheusRecorder) StreamEvent(_ context.Context, name string, parsed bool) {
	r.events.WithLabelValues(name, outcome(parsed)).Inc()
}

func outcome(parsed bool) string {
	if parsed {
		return "parsed"
	}
	return "parse_error"
}
