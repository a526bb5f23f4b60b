package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbukum/querykit/httpclient/sse"
	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/resilience"
	"github.com/kbukum/querykit/version"
)

// Transport performs one HTTP exchange. Implementations must honour ctx
// cancellation and report it as an ErrCodeCanceled *Error.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// StreamTransport opens a long-lived response.
type StreamTransport interface {
	Stream(ctx context.Context, req *Request) (*StreamResponse, error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Adapter) { a.httpClient = hc }
}

// WithLogger sets the adapter logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// Adapter is the net/http implementation of Transport and StreamTransport
// with auth, TLS, circuit breaking and rate limiting.
type Adapter struct {
	httpClient *http.Client
	config     Config
	log        *logger.Logger
	cb         *resilience.CircuitBreaker
	rl         *resilience.RateLimiter
}

var (
	_ Transport       = (*Adapter)(nil)
	_ StreamTransport = (*Adapter)(nil)
)

// New creates a new HTTP adapter with the given configuration.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	rt, err := cfg.HTTP2.roundTripper(transport)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		httpClient: &http.Client{Transport: rt},
		config:     cfg,
	}
	if cfg.CircuitBreaker != nil {
		a.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	if cfg.RateLimiter != nil {
		a.rl = resilience.NewRateLimiter(*cfg.RateLimiter)
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get("httpclient")
	}
	return a, nil
}

// Do executes a request and reads the whole response. Non-2xx responses are
// returned without error; only transport failures produce an *Error.
func (a *Adapter) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := a.admit(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	resp, err := a.roundTrip(ctx, req)
	if err != nil {
		a.record(false)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.record(false)
		return nil, classify(ctx, fmt.Errorf("read response body: %w", err))
	}
	a.record(resp.StatusCode < 500)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Stream opens a streaming response. A non-2xx status is returned as an
// ErrCodeStatus error after draining the body.
func (a *Adapter) Stream(ctx context.Context, req *Request) (*StreamResponse, error) {
	if err := a.admit(ctx); err != nil {
		return nil, err
	}

	resp, err := a.roundTrip(ctx, req)
	if err != nil {
		a.record(false)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		a.record(resp.StatusCode < 500)
		return nil, NewStatusError(resp.StatusCode, body)
	}
	a.record(true)

	sr := &StreamResponse{StatusCode: resp.StatusCode, Header: resp.Header}
	if MediaType(resp.Header.Get("Content-Type")) == "text/event-stream" {
		sr.SSE = sse.NewReader(resp.Body)
	} else {
		sr.Body = resp.Body
	}
	return sr, nil
}

// Available reports whether the circuit breaker currently admits requests.
func (a *Adapter) Available() bool {
	return a.cb == nil || a.cb.State() != resilience.BreakerOpen
}

// Close releases idle connections.
func (a *Adapter) Close(_ context.Context) error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// Config returns the adapter's configuration.
func (a *Adapter) Config() Config {
	return a.config
}

// Unwrap returns the underlying *http.Client.
func (a *Adapter) Unwrap() *http.Client {
	return a.httpClient
}

func (a *Adapter) admit(ctx context.Context) error {
	if a.rl != nil {
		if err := a.rl.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return classify(ctx, err)
			}
			return &Error{Code: ErrCodeRateLimited, Message: err.Error(), Err: err}
		}
	}
	if a.cb != nil {
		if err := a.cb.Allow(); err != nil {
			return &Error{Code: ErrCodeCircuitOpen, Message: err.Error(), Err: err}
		}
	}
	return nil
}

func (a *Adapter) record(success bool) {
	if a.cb != nil {
		a.cb.Record(success)
	}
}

func (a *Adapter) roundTrip(ctx context.Context, req *Request) (*http.Response, error) {
	httpReq, err := a.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	a.log.Debug("sending request", map[string]interface{}{
		logger.FieldMethod: httpReq.Method,
		logger.FieldURL:    redactURL(httpReq.URL),
	})
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return resp, nil
}

func (a *Adapter) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := ResolveURL(a.config.BaseURL, req.Path)

	payload, err := Encode(req.Body)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}
	var body io.Reader
	if payload != nil {
		body = payload.reader()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("create request: %v", err))
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range req.Query {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	httpReq.Header.Set("User-Agent", version.UserAgent())
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}
	auth := a.config.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	auth.apply(httpReq)
	for k, vs := range req.Header {
		httpReq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	if payload != nil && payload.ContentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", payload.ContentType)
	}
	return httpReq, nil
}

// ResolveURL joins base and path. Absolute paths are returned unchanged.
func ResolveURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// redactURL strips query values so credentials passed as parameters never reach logs.
func redactURL(u *url.URL) string {
	c := *u
	if c.RawQuery != "" {
		q := c.Query()
		for k := range q {
			q.Set(k, "REDACTED")
		}
		c.RawQuery = q.Encode()
	}
	c.User = nil
	return c.String()
}
