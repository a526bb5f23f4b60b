package resilience

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	// BreakerClosed lets requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until the cool-down elapses.
	BreakerOpen
	// BreakerHalfOpen admits a limited number of probe requests.
	BreakerHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Allow while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures" validate:"gte=0"`
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// HalfOpenMaxCalls is the number of probes admitted while half-open.
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" mapstructure:"half_open_max_calls" validate:"gte=0"`

	OnStateChange func(name string, from, to BreakerState) `yaml:"-" mapstructure:"-"`
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker fails fast while an upstream is unhealthy. Callers ask
// Allow before sending and report the outcome with Record.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         BreakerState
	failures      int
	successes     int
	openedAt      time.Time
	halfOpenCalls int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Allow reports whether a request may proceed. It returns ErrCircuitOpen when
// the request must be rejected.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case BreakerClosed:
		return nil
	case BreakerHalfOpen:
		if cb.halfOpenCalls < cb.config.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			return nil
		}
	}
	return ErrCircuitOpen
}

// Record reports the outcome of a request admitted by Allow.
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState()
	if success {
		switch state {
		case BreakerClosed:
			cb.failures = 0
		case BreakerHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.HalfOpenMaxCalls {
				cb.toState(BreakerClosed)
			}
		}
		return
	}

	cb.failures++
	switch state {
	case BreakerClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.toState(BreakerOpen)
		}
	case BreakerHalfOpen:
		cb.toState(BreakerOpen)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Reset closes the circuit and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(BreakerClosed)
	cb.failures = 0
}

// currentState handles the open → half-open transition. Caller holds mu.
func (cb *CircuitBreaker) currentState() BreakerState {
	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.toState(BreakerHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) toState(to BreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.halfOpenCalls = 0
	cb.successes = 0
	switch to {
	case BreakerClosed:
		cb.failures = 0
	case BreakerOpen:
		cb.openedAt = cb.now()
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
