package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/querykit/credential"
	"github.com/kbukum/querykit/httpclient/sse"
	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/observability"
	"github.com/kbukum/querykit/problem"
	"github.com/kbukum/querykit/resilience"
	"github.com/kbukum/querykit/state"
	"github.com/kbukum/querykit/tracker"
	"github.com/kbukum/querykit/validation"
)

// Status is the connection state of an Engine.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusError
	StatusReconnecting
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusError:
		return "error"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("stream engine closed")

// errStale ends a session that lost ownership of the engine.
var errStale = errors.New("stream session replaced")

// Engine manages one event stream session at a time and publishes a
// state.State[T] for every decoded event.
type Engine[T any] struct {
	name      string
	transport Transport
	static    Config
	cred      credential.Supplier
	tracker   *tracker.Dispatcher
	recorder  observability.Recorder
	log       *logger.Logger
	store     *state.Store[T]

	mu     sync.Mutex
	sess   *session
	status Status
	closed bool
	wg     sync.WaitGroup
}

// session is one logical connection lifetime. Only the run goroutine
// touches the fields below conn.
type session struct {
	id     string
	gen    uint64
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// conn is guarded by Engine.mu.
	conn Conn

	attempts    int
	backoff     backoff.BackOff
	lastEventID string
	retryHint   time.Duration
	lastErr     error
}

// New binds an engine to transport and a static session config.
func New[T any](transport Transport, cfg Config, opts ...Option) (*Engine[T], error) {
	if transport == nil {
		return nil, errors.New("stream: transport is required")
	}
	if err := validation.Validate(cfg); err != nil {
		return nil, err
	}
	o := options{name: "stream"}
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
		static:    cfg,
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

// Status returns the connection state.
func (e *Engine[T]) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Done returns a channel closed when the current session ends. It is
// already closed when no session is running.
func (e *Engine[T]) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.sess.done
}

// Execute closes any running session and starts a new one in the
// background. The session lives until Abort, Close, a terminal connection
// failure or cancellation of ctx.
func (e *Engine[T]) Execute(ctx context.Context, overrides ...Override) error {
	cfg := e.static.merge(overrides...)
	if err := validation.Validate(cfg); err != nil {
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:      uuid.NewString(),
		cfg:     cfg,
		ctx:     sctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		backoff: cfg.Reconnect.Backoff(),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return ErrClosed
	}
	stopPrev := e.detachLocked()
	s.gen = e.store.Begin()
	e.sess = s
	e.status = StatusConnecting
	e.wg.Add(1)
	e.mu.Unlock()

	stopPrev()
	e.store.Apply(s.gen, state.Event[T]{Kind: state.Reset})
	e.log.Info("stream session started", logger.Fields(
		logger.FieldSessionID, s.id,
		logger.FieldURL, cfg.URL(),
	))
	go e.run(s)
	return nil
}

// Abort stops the running session, cancelling any pending reconnect, and
// clears Loading. It is a no-op when no session is running.
func (e *Engine[T]) Abort() {
	e.mu.Lock()
	s := e.sess
	if s == nil {
		e.mu.Unlock()
		return
	}
	stop := e.detachLocked()
	gen := e.store.Begin()
	e.status = StatusClosed
	e.mu.Unlock()

	stop()
	e.store.Apply(gen, state.Event[T]{Kind: state.Settled})
	e.log.Info("stream aborted", logger.Fields(logger.FieldSessionID, s.id))
}

// Close aborts the running session, rejects further calls and waits for
// the session goroutine and pending tracker notifications.
func (e *Engine[T]) Close() error {
	e.Abort()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
	e.tracker.Wait()
	return nil
}

// detachLocked removes the current session and returns a func that
// cancels it and closes its connection.
func (e *Engine[T]) detachLocked() func() {
	s := e.sess
	e.sess = nil
	if s == nil {
		return func() {}
	}
	conn := s.conn
	return func() {
		s.cancel()
		if conn != nil {
			_ = conn.Close()
		}
	}
}

// run drives one session through connect, read and reconnect until it ends.
func (e *Engine[T]) run(s *session) {
	defer e.wg.Done()
	defer e.finish(s)

	for {
		conn, err := e.connect(s)
		if err == nil {
			if !e.opened(s, conn) {
				_ = conn.Close()
				return
			}
			err = e.consume(s, conn)
			e.release(s, conn)
		}
		if !e.live(s) {
			return
		}
		s.lastErr = err

		e.transition(s, StatusError)
		e.store.Apply(s.gen, state.Event[T]{Kind: state.Settled})

		if s.attempts >= s.cfg.Reconnect.Count {
			p := problem.ConnectionFailed(s.attempts, err)
			if e.store.Apply(s.gen, state.Event[T]{Kind: state.Failed, Problem: p}) {
				e.recorder.Problem(s.ctx, e.name, p)
				e.tracker.Notify(s.ctx, p, e.meta(s))
			}
			e.log.Error("stream connection failed", logger.Fields(
				logger.FieldSessionID, s.id,
				logger.FieldAttempt, s.attempts,
				logger.FieldError, errString(err),
			))
			return
		}

		s.attempts++
		delay := s.cfg.delay(s.backoff.NextBackOff(), s.retryHint)
		e.transition(s, StatusReconnecting)
		e.recorder.Reconnect(s.ctx, e.name, s.attempts)
		e.log.Warn("stream reconnecting", logger.Fields(
			logger.FieldSessionID, s.id,
			logger.FieldAttempt, s.attempts,
			logger.FieldDelay, delay.Milliseconds(),
			logger.FieldError, errString(err),
		))
		if err := resilience.Wait(s.ctx, delay); err != nil {
			return
		}
		if !e.transition(s, StatusConnecting) {
			return
		}
	}
}

// connect resolves the credential and opens the transport.
func (e *Engine[T]) connect(s *session) (Conn, error) {
	ctx, span := observability.StartSpan(s.ctx, observability.SpanStreamConnect, trace.WithAttributes(
		attribute.String(observability.AttrEngine, e.name),
		attribute.String(observability.AttrSessionID, s.id),
		attribute.Int(observability.AttrAttempt, s.attempts),
	))
	defer span.End()

	target, err := e.target(ctx, s.cfg)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	conn, err := e.transport.Open(ctx, target, s.lastEventID)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	return conn, nil
}

// target builds the stream URL, adding the credential as a query parameter
// when configured and non-empty.
func (e *Engine[T]) target(ctx context.Context, cfg Config) (string, error) {
	u, err := url.Parse(cfg.URL())
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range cfg.Query {
		q[k] = append([]string(nil), vs...)
	}
	if cfg.AuthQueryParam != "" {
		token, err := credential.Resolve(ctx, e.cred)
		if err != nil {
			return "", problem.Credential(err)
		}
		if token != "" {
			q.Set(cfg.AuthQueryParam, token)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// track records the reconnect cursor. Connections that implement Cursor
// also report id and retry fields from blocks that carried no data.
func (s *session) track(conn Conn, ev *sse.Event) {
	if c, ok := conn.(Cursor); ok {
		if id := c.LastEventID(); id != "" {
			s.lastEventID = id
		}
		if hint := c.RetryHint(); hint > 0 {
			s.retryHint = hint
		}
		return
	}
	if ev == nil {
		return
	}
	if ev.ID != "" {
		s.lastEventID = ev.ID
	}
	if ev.Retry > 0 {
		s.retryHint = ev.Retry
	}
}

// opened registers conn on s if s still owns the engine.
func (e *Engine[T]) opened(s *session, conn Conn) bool {
	e.mu.Lock()
	if e.sess != s || s.ctx.Err() != nil {
		e.mu.Unlock()
		return false
	}
	s.conn = conn
	e.status = StatusOpen
	e.mu.Unlock()

	s.attempts = 0
	s.backoff.Reset()
	e.store.Apply(s.gen, state.Event[T]{Kind: state.Opened})
	e.log.Info("stream open", logger.Fields(logger.FieldSessionID, s.id))
	return true
}

func (e *Engine[T]) release(s *session, conn Conn) {
	e.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	e.mu.Unlock()
	_ = conn.Close()
}

// consume reads events until the connection fails. Parse failures are
// published and the connection stays open.
func (e *Engine[T]) consume(s *session, conn Conn) error {
	stop := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		ev, err := conn.Next()
		s.track(conn, ev)
		if err != nil {
			return err
		}
		if s.cfg.ignored(ev.Event) {
			continue
		}

		var v T
		if err := json.Unmarshal([]byte(ev.Data), &v); err != nil {
			p := problem.Parse(err)
			if !e.store.Apply(s.gen, state.Event[T]{Kind: state.Rejected, Problem: p}) {
				return errStale
			}
			e.recorder.StreamEvent(s.ctx, e.name, false)
			e.tracker.Notify(s.ctx, p, e.meta(s))
			continue
		}
		if !e.store.Apply(s.gen, state.Event[T]{Kind: state.Received, Data: &v}) {
			return errStale
		}
		e.recorder.StreamEvent(s.ctx, e.name, true)
	}
}

// transition sets the status if s still owns the engine.
func (e *Engine[T]) transition(s *session, st Status) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != s {
		return false
	}
	e.status = st
	return true
}

func (e *Engine[T]) live(s *session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess == s && s.ctx.Err() == nil
}

// finish detaches s if it ended on its own: a terminal failure or a
// cancelled parent context.
func (e *Engine[T]) finish(s *session) {
	s.cancel()
	e.mu.Lock()
	owned := e.sess == s
	if owned {
		e.sess = nil
		e.status = StatusClosed
	}
	e.mu.Unlock()

	if owned {
		e.store.Apply(s.gen, state.Event[T]{Kind: state.Settled})
	}
	close(s.done)
}

func (e *Engine[T]) meta(s *session) tracker.Meta {
	return tracker.Meta{
		Engine:     e.name,
		Kind:       "stream",
		URL:        s.cfg.URL(),
		Generation: s.gen,
		Attempt:    s.attempts,
		SessionID:  s.id,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
