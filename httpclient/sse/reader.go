// Package sse reads text/event-stream bodies.
package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	// Event is the "event:" type. Empty for data-only events.
	Event string
	// Data joins multiple "data:" lines with newlines.
	Data string
	ID   string
	// Retry is the reconnection hint carried by this event, if any.
	Retry time.Duration
}

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next event, or io.EOF when the stream ends.
	Next() (*Event, error)
	// LastEventID returns the most recent "id:" value seen.
	LastEventID() string
	// RetryHint returns the most recent "retry:" value seen, or 0.
	RetryHint() time.Duration
	// Close releases the stream. It is safe to call more than once.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser

	lastID  string
	retry   time.Duration
	started bool

	closeOnce sync.Once
	closeErr  error
}

// NewReader creates an SSE reader over body.
func NewReader(body io.ReadCloser) Reader {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &reader{scanner: s, body: body}
}

func (r *reader) Next() (*Event, error) {
	var event Event
	var hasData, hasID bool

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if !r.started {
			line = strings.TrimPrefix(line, "\ufeff")
			r.started = true
		}

		if line == "" {
			// A blank line ends the block. Its id counts even when it
			// carries no data.
			if hasID {
				r.lastID = event.ID
			}
			if hasData {
				return &event, nil
			}
			event, hasID = Event{}, false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				event.ID = value
				hasID = true
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				event.Retry = time.Duration(ms) * time.Millisecond
				r.retry = event.Retry
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	// A block cut off by the end of the stream is never dispatched.
	return nil, io.EOF
}

func (r *reader) LastEventID() string { return r.lastID }

func (r *reader) RetryHint() time.Duration { return r.retry }

func (r *reader) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.body.Close() })
	return r.closeErr
}

// parseLine splits a line into field and value, dropping one leading space
// from the value.
func parseLine(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
