package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/querykit/resilience"
)

const (
	defaultTimeout = 30 * time.Second
	defaultName    = "http"
)

// Config configures the HTTP adapter.
type Config struct {
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is prepended to relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Timeout bounds a single non-streaming exchange. Defaults to 30s.
	// Streaming requests are bounded only by their context.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`

	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// HTTP2 tunes HTTP/2. Nil keeps the net/http defaults.
	HTTP2 *HTTP2Config `yaml:"http2" mapstructure:"http2"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// CircuitBreaker is disabled when nil.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`

	// RateLimiter is disabled when nil.
	RateLimiter *resilience.RateLimiterConfig `yaml:"rate_limiter" mapstructure:"rate_limiter"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return c.TLS.Validate()
}
