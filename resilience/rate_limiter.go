package resilience

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by Allow when no token is available.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a token-bucket rate limiter.
type RateLimiterConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	// Rate is the number of requests allowed per second.
	Rate float64 `yaml:"rate" mapstructure:"rate" validate:"gte=0"`
	// Burst is the maximum burst size.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	// Block makes Wait queue the request instead of rejecting it.
	Block bool `yaml:"block" mapstructure:"block"`

	OnLimit func(name string) `yaml:"-" mapstructure:"-"`
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:  name,
		Rate:  10.0,
		Burst: 20,
	}
}

// RateLimiter throttles outgoing requests.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = max(int(config.Rate), 1)
	}
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Allow takes a token without blocking.
func (rl *RateLimiter) Allow() bool {
	if rl.limiter.Allow() {
		return true
	}
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}
	return false
}

// Wait takes a token. In blocking mode it waits for one (or for ctx);
// otherwise it returns ErrRateLimited immediately when none is available.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.config.Block {
		if rl.Allow() {
			return nil
		}
		return ErrRateLimited
	}
	return rl.limiter.Wait(ctx)
}
