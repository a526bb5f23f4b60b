// Package resilience provides the retry policy shared by the query and stream
// engines, plus the optional circuit breaker and rate limiter applied by the
// HTTP transport.
//
// RetryPolicy is deliberately small: Count extra attempts, a fixed Delay
// between them, and retry only for 5xx statuses. An exponential strategy is
// available as an opt-in:
//
//	p := resilience.RetryPolicy{Count: 2, Delay: 10 * time.Millisecond}
//	v, err := resilience.Retry(ctx, p, func(attempt int) (T, error) { ... })
//
// The same policy drives stream reconnection: Count is the reconnect budget
// and Backoff yields the delay before each reconnect.
package resilience
