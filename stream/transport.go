package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/querykit/httpclient"
	"github.com/kbukum/querykit/httpclient/sse"
)

// Conn is one open event stream.
type Conn interface {
	// Next blocks for the next event. It returns io.EOF when the server
	// ends the stream.
	Next() (*sse.Event, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Cursor is implemented by connections that track the server's last event
// id and retry hint, including those sent in blocks without data.
type Cursor interface {
	LastEventID() string
	RetryHint() time.Duration
}

// Transport opens event streams. lastEventID is empty on the first connect
// of a session.
type Transport interface {
	Open(ctx context.Context, target, lastEventID string) (Conn, error)
}

// ErrNotEventStream is returned when the server answers with a content type
// other than text/event-stream.
var ErrNotEventStream = errors.New("stream: response is not text/event-stream")

// SSETransport opens streams through an httpclient.StreamTransport, so the
// adapter's TLS, rate limiter and circuit breaker apply to connects.
type SSETransport struct {
	client httpclient.StreamTransport
}

// NewSSETransport wraps client.
func NewSSETransport(client httpclient.StreamTransport) *SSETransport {
	return &SSETransport{client: client}
}

// Open issues a GET for target and returns its event reader.
func (t *SSETransport) Open(ctx context.Context, target, lastEventID string) (Conn, error) {
	req := &httpclient.Request{
		Method: http.MethodGet,
		Path:   target,
		Header: http.Header{
			"Accept":        {"text/event-stream"},
			"Cache-Control": {"no-cache"},
		},
	}
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	resp, err := t.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.SSE == nil {
		_ = resp.Close()
		return nil, fmt.Errorf("%w: got %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}
	return resp.SSE, nil
}
