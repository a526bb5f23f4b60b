package stream

import (
	"net/url"
	"slices"
	"time"

	"github.com/kbukum/querykit/httpclient"
	"github.com/kbukum/querykit/resilience"
)

// DefaultIgnoreEvents are event types skipped without decoding.
var DefaultIgnoreEvents = []string{"ping"}

// Config describes a stream session.
type Config struct {
	// BaseURL and Path are joined into the stream URL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Path    string `yaml:"path" mapstructure:"path"`
	// Query is appended to the URL.
	Query url.Values `yaml:"-" mapstructure:"-"`
	// AuthQueryParam names the query parameter carrying the credential.
	// Empty disables credential injection.
	AuthQueryParam string `yaml:"auth_query_param" mapstructure:"auth_query_param"`
	// Reconnect bounds reconnection: Count attempts, Delay apart.
	Reconnect resilience.RetryPolicy `yaml:"reconnect" mapstructure:"reconnect"`
	// IgnoreEvents lists event types to skip. Nil means DefaultIgnoreEvents.
	IgnoreEvents []string `yaml:"ignore_events" mapstructure:"ignore_events"`
	// HonorRetryHint uses the server's "retry:" field as the reconnect
	// delay when present.
	HonorRetryHint bool `yaml:"honor_retry_hint" mapstructure:"honor_retry_hint"`
}

// Override is a partial Config for one Execute call. Nil fields are unset.
type Override struct {
	BaseURL        *string
	Path           *string
	Query          url.Values
	AuthQueryParam *string
	Reconnect      *resilience.RetryPolicy
}

// URL returns the stream URL without credentials.
func (c Config) URL() string {
	return httpclient.ResolveURL(c.BaseURL, c.Path)
}

func (c Config) ignored(event string) bool {
	list := c.IgnoreEvents
	if list == nil {
		list = DefaultIgnoreEvents
	}
	return event != "" && slices.Contains(list, event)
}

func (c Config) merge(overrides ...Override) Config {
	out := c
	if c.Query != nil {
		out.Query = make(url.Values, len(c.Query))
		for k, vs := range c.Query {
			out.Query[k] = append([]string(nil), vs...)
		}
	}
	for _, o := range overrides {
		if o.BaseURL != nil {
			out.BaseURL = *o.BaseURL
		}
		if o.Path != nil {
			out.Path = *o.Path
		}
		for k, vs := range o.Query {
			if out.Query == nil {
				out.Query = make(url.Values)
			}
			out.Query[k] = append([]string(nil), vs...)
		}
		if o.AuthQueryParam != nil {
			out.AuthQueryParam = *o.AuthQueryParam
		}
		if o.Reconnect != nil {
			out.Reconnect = *o.Reconnect
		}
	}
	return out
}

// delay returns the next reconnect delay, preferring the server hint when
// configured.
func (c Config) delay(next, hint time.Duration) time.Duration {
	if c.HonorRetryHint && hint > 0 {
		return hint
	}
	return next
}
