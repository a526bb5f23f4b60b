package stream

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

// WithName labels logs, metrics and spans. Defaults to "stream".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCredential supplies the token sent in Config.AuthQueryParam. It is
// called on every connect.
func WithCredential(s credential.Supplier) Option {
	return func(o *options) { o.credential = s }
}

// WithTracker receives parse failures and terminal connection problems.
func WithTracker(t tracker.Tracker) Option {
	return func(o *options) { o.tracker = t }
}

// WithRecorder records reconnect and event metrics.
func WithRecorder(r observability.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}
