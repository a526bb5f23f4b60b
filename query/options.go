package query

import (
	"github.com/kbukum/querykit/credential"
	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/observability"
	"github.com/kbukum/querykit/tracker"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	name       string
	credential credential.Supplier
	tracker    tracker.Tracker
	recorder   observability.Recorder
	log        *logger.Logger
}

// WithName labels logs, metrics and spans. Defaults to "query".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCredential attaches "Authorization: Bearer <token>" to every attempt.
// The supplier is called once per attempt and never cached.
func WithCredential(s credential.Supplier) Option {
	return func(o *options) { o.credential = s }
}

// WithTracker receives every published problem. Defaults to a logger tracker.
func WithTracker(t tracker.Tracker) Option {
	return func(o *options) { o.tracker = t }
}

// WithRecorder records attempt, retry and problem metrics.
func WithRecorder(r observability.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}
