package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/querykit/credential"
	"github.com/kbukum/querykit/httpclient"
	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/observability"
	"github.com/kbukum/querykit/problem"
	"github.com/kbukum/querykit/resilience"
	"github.com/kbukum/querykit/state"
	"github.com/kbukum/querykit/tracker"
	"github.com/kbukum/querykit/validation"
)

// HeaderRequestID carries the per-call request id. Retries of one call share it.
const HeaderRequestID = "X-Request-ID"

var (
	// ErrSuperseded is the cancellation cause when a newer Execute started.
	ErrSuperseded = fmt.Errorf("query superseded: %w", context.Canceled)
	// ErrAborted is the cancellation cause when Abort was called.
	ErrAborted = fmt.Errorf("query aborted: %w", context.Canceled)
	// ErrClosed is returned by Execute after Close.
	ErrClosed = errors.New("query engine closed")
)

// IsCanceled reports whether err is the result of a superseded, aborted or
// caller-cancelled call rather than a problem.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Engine runs single-flight requests for one Descriptor and publishes a
// state.State[T].
type Engine[T any] struct {
	name      string
	transport httpclient.Transport
	static    Descriptor
	cred      credential.Supplier
	tracker   *tracker.Dispatcher
	recorder  observability.Recorder
	log       *logger.Logger
	store     *state.Store[T]

	mu     sync.Mutex
	cancel context.CancelCauseFunc
	active uint64
	closed bool
}

// New binds an engine to transport and a static descriptor.
func New[T any](transport httpclient.Transport, desc Descriptor, opts ...Option) (*Engine[T], error) {
	if transport == nil {
		return nil, errors.New("query: transport is required")
	}
	if err := validation.Validate(desc); err != nil {
		return nil, err
	}
	o := options{name: "query"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get(o.name)
	}
	if o.recorder == nil {
		o.recorder = observability.Nop()
	}
	return &Engine[T]{
		name:      o.name,
		transport: transport,
		static:    desc,
		cred:      o.credential,
		tracker:   tracker.NewDispatcher(o.tracker, o.log),
		recorder:  o.recorder,
		log:       o.log,
		store:     state.NewStore[T](),
	}, nil
}

// Name returns the engine label.
func (e *Engine[T]) Name() string { return e.name }

// State returns the current published snapshot.
func (e *Engine[T]) State() state.State[T] { return e.store.Get() }

// Subscribe registers fn for every published snapshot. fn may call Execute
// or Abort.
func (e *Engine[T]) Subscribe(fn func(state.State[T])) (cancel func()) {
	return e.store.Subscribe(fn)
}

// Execute supersedes any call in flight and runs a new one. On success it
// returns the decoded value. A surfaced problem is returned as a
// *problem.Details error. A superseded, aborted or cancelled call returns an
// error for which IsCanceled is true and publishes nothing but Loading=false.
func (e *Engine[T]) Execute(ctx context.Context, overrides ...Override) (*T, error) {
	callCtx, cancel := context.WithCancelCause(ctx)
	gen, err := e.begin(cancel)
	if err != nil {
		cancel(err)
		return nil, err
	}
	defer e.release(gen, cancel)

	desc := Merge(e.static, overrides...)
	requestID := uuid.NewString()
	callCtx = logger.ContextWithRequestID(callCtx, requestID)
	log := e.log.WithContext(callCtx)

	callCtx, span := observability.StartSpan(callCtx, observability.SpanQueryExecute, trace.WithAttributes(
		attribute.String(observability.AttrEngine, e.name),
		attribute.Int64(observability.AttrGeneration, int64(gen)),
		attribute.String(observability.AttrMethod, desc.Method),
	))
	defer span.End()

	meta := tracker.Meta{
		Engine:     e.name,
		Kind:       "query",
		Method:     desc.Method,
		URL:        desc.URL(),
		Generation: gen,
	}

	e.store.Apply(gen, state.Event[T]{Kind: state.Started})

	req, policy, err := e.prepare(desc)
	if err != nil {
		return nil, e.fail(callCtx, gen, problem.FromError(err), meta, span)
	}
	req.Header.Set(HeaderRequestID, requestID)

	userOnRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("retrying request", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldStatus, resilience.StatusOf(err),
			logger.FieldDelay, delay.Milliseconds(),
		))
		e.recorder.Retry(callCtx, e.name, attempt, delay)
		if userOnRetry != nil {
			userOnRetry(attempt, err, delay)
		}
	}

	v, err := resilience.Retry(callCtx, policy, func(attempt int) (*T, error) {
		meta.Attempt = attempt
		return e.attempt(callCtx, req, desc.ResponseKind, attempt)
	})

	switch {
	case err == nil:
		if !e.store.Apply(gen, state.Event[T]{Kind: state.Succeeded, Data: v}) {
			return nil, e.canceled(callCtx)
		}
		span.SetStatus(codes.Ok, "")
		log.Debug("request succeeded", logger.Fields(logger.FieldAttempt, meta.Attempt))
		return v, nil
	case callCtx.Err() != nil || IsCanceled(err):
		e.store.Apply(gen, state.Event[T]{Kind: state.Settled})
		span.SetAttributes(attribute.String(observability.AttrOutcome, "canceled"))
		log.Debug("request canceled", logger.Fields(logger.FieldAttempt, meta.Attempt))
		return nil, e.canceled(callCtx)
	default:
		return nil, e.fail(callCtx, gen, toProblem(err), meta, span)
	}
}

// Abort cancels the call in flight and clears Loading. It is a no-op when
// the engine is idle.
func (e *Engine[T]) Abort() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	var gen uint64
	if cancel != nil {
		gen = e.store.Begin()
		e.active = gen
	}
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel(ErrAborted)
	e.store.Apply(gen, state.Event[T]{Kind: state.Settled})
}

// Close aborts any call in flight, rejects further calls and waits for
// pending tracker notifications.
func (e *Engine[T]) Close() error {
	e.Abort()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.tracker.Wait()
	return nil
}

// begin issues a new generation and cancels the predecessor.
func (e *Engine[T]) begin(cancel context.CancelCauseFunc) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	gen := e.store.Begin()
	if e.cancel != nil {
		e.cancel(ErrSuperseded)
	}
	e.cancel = cancel
	e.active = gen
	return gen, nil
}

func (e *Engine[T]) release(gen uint64, cancel context.CancelCauseFunc) {
	e.mu.Lock()
	if e.active == gen {
		e.cancel = nil
	}
	e.mu.Unlock()
	cancel(context.Canceled)
}

// prepare encodes the body once and resolves the retry policy. A body that
// cannot be replayed limits the call to one attempt.
func (e *Engine[T]) prepare(desc Descriptor) (*httpclient.Request, resilience.RetryPolicy, error) {
	policy := desc.policy()
	if err := validation.Validate(desc); err != nil {
		return nil, policy, err
	}
	payload, err := httpclient.Encode(desc.Body)
	if err != nil {
		return nil, policy, httpclient.NewValidationError(err.Error())
	}
	if !payload.Replayable() && policy.Count > 0 {
		e.log.Warn("streamed request body disables retry", logger.Fields("count", policy.Count))
		policy.Count = 0
	}
	return desc.request(payload), policy, nil
}

// attempt performs one exchange. The returned error carries the HTTP status
// so that only 5xx responses are retried.
func (e *Engine[T]) attempt(ctx context.Context, base *httpclient.Request, kind ResponseKind, attempt int) (*T, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanQueryAttempt, trace.WithAttributes(
		attribute.Int(observability.AttrAttempt, attempt),
	))
	defer span.End()

	req := base.Clone()
	token, err := credential.Resolve(ctx, e.cred)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, problem.Credential(err)
	}
	if token != "" {
		req.Header.Set("Authorization", credential.BearerHeader(token))
	}

	e.log.Debug("sending attempt", logger.Fields(logger.FieldAttempt, attempt, logger.FieldMethod, req.Method))
	start := time.Now()
	resp, err := e.transport.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil || httpclient.IsCanceled(err) {
			return nil, err
		}
		e.recorder.Attempt(ctx, e.name, 0, time.Since(start))
		observability.SetSpanError(ctx, err)
		return nil, problem.FromError(err)
	}
	elapsed := time.Since(start)
	e.recorder.Attempt(ctx, e.name, resp.StatusCode, elapsed)
	e.log.Debug("attempt finished", logger.MergeWithDuration(
		logger.Fields(logger.FieldAttempt, attempt, logger.FieldStatus, resp.StatusCode), elapsed))
	span.SetAttributes(attribute.Int(observability.AttrStatus, resp.StatusCode))

	if !resp.IsSuccess() {
		return nil, &statusFailure{status: resp.StatusCode, problem: ProblemOf(resp)}
	}
	v, err := Decode[T](resp, kind)
	if err != nil {
		return nil, problem.Decode(resp.StatusCode, err)
	}
	return v, nil
}

func (e *Engine[T]) fail(ctx context.Context, gen uint64, p *problem.Details, meta tracker.Meta, span trace.Span) error {
	if !e.store.Apply(gen, state.Event[T]{Kind: state.Failed, Problem: p}) {
		return e.canceled(ctx)
	}
	span.SetAttributes(
		attribute.String(observability.AttrProblem, p.Title),
		attribute.Int(observability.AttrStatus, p.Status),
	)
	span.SetStatus(codes.Error, p.Title)
	e.recorder.Problem(ctx, e.name, p)
	e.tracker.Notify(ctx, p, meta)
	e.log.Debug("request failed", logger.Fields(logger.FieldStatus, p.Status, "title", p.Title))
	return p
}

func (e *Engine[T]) canceled(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ErrSuperseded
}

// statusFailure is a non-success response. Its status drives the retry
// decision regardless of what the problem body reports.
type statusFailure struct {
	status  int
	problem *problem.Details
}

func (f *statusFailure) Error() string   { return f.problem.Error() }
func (f *statusFailure) StatusCode() int { return f.status }
func (f *statusFailure) Unwrap() error   { return f.problem }

// toProblem maps the error returned by resilience.Retry to the problem to
// publish.
func toProblem(err error) *problem.Details {
	var exhausted *resilience.ExhaustedError
	if errors.As(err, &exhausted) {
		last, _ := problem.As(exhausted.Last)
		return problem.MaxAttempts(exhausted.Attempts, last)
	}
	return problem.FromError(err)
}
