package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Strategy selects how the delay evolves between attempts.
type Strategy string

const (
	// StrategyFixed waits the same Delay before every retry. This is the default.
	StrategyFixed Strategy = "fixed"
	// StrategyExponential doubles the delay after every retry, capped at MaxDelay.
	StrategyExponential Strategy = "exponential"
)

const defaultMaxDelay = 30 * time.Second

// ErrMaxAttemptsExceeded is wrapped by the error Retry returns when every
// attempt failed with a retryable outcome.
var ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

// RetryPolicy configures bounded retry. The zero value performs exactly one
// attempt.
type RetryPolicy struct {
	// Count is the number of retries after the first attempt.
	Count int `yaml:"count" mapstructure:"count" validate:"gte=0"`
	// Delay is the wait before each retry.
	Delay time.Duration `yaml:"delay" mapstructure:"delay" validate:"gte=0"`
	// Strategy selects fixed (default) or exponential delays.
	Strategy Strategy `yaml:"strategy" mapstructure:"strategy" validate:"omitempty,oneof=fixed exponential"`
	// MaxDelay caps exponential delays. Defaults to 30s.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay" validate:"gte=0"`
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" mapstructure:"-"`
}

// NoRetry returns a policy that performs a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// FixedDelay returns a policy with count retries separated by delay.
func FixedDelay(count int, delay time.Duration) RetryPolicy {
	return RetryPolicy{Count: count, Delay: delay, Strategy: StrategyFixed}
}

// Attempts returns the total attempt budget (Count+1).
func (p RetryPolicy) Attempts() int {
	if p.Count < 0 {
		return 1
	}
	return p.Count + 1
}

// IsRetryableStatus reports whether an HTTP status is a transient server failure.
func IsRetryableStatus(status int) bool {
	return status >= 500 && status < 600
}

// Retryable reports whether attempt (1-based) ended with status and another
// attempt is still within budget.
func (p RetryPolicy) Retryable(status, attempt int) bool {
	return IsRetryableStatus(status) && attempt < p.Attempts()
}

// Backoff returns a fresh delay generator for one logical operation.
func (p RetryPolicy) Backoff() backoff.BackOff {
	if p.Strategy != StrategyExponential {
		return backoff.NewConstantBackOff(p.Delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = defaultMaxDelay
	}
	b.Reset()
	return b
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// StatusOf extracts the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// ExhaustedError is returned when the budget ran out on retryable failures.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrMaxAttemptsExceeded, e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last attempt's error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrMaxAttemptsExceeded, e.Last}
}

// Retry runs fn up to p.Attempts() times. An attempt is retried only when its
// error carries a 5xx status; any other error is returned as is. Cancellation
// of ctx during the delay returns ctx.Err().
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	delays := p.Backoff()
	attempts := p.Attempts()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsRetryableStatus(StatusOf(err)) {
			return zero, err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return zero, err
			}
			return zero, &ExhaustedError{Attempts: attempt, Last: err}
		}

		delay := delays.NextBackOff()
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := Wait(ctx, delay); err != nil {
			return zero, err
		}
	}
}
