package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCode classifies transport-level failures.
type ErrorCode int

const (
	// ErrCodeTimeout indicates a request or connection timeout.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection indicates a connection failure (refused, DNS, reset).
	ErrCodeConnection
	// ErrCodeCanceled indicates the caller cancelled the exchange.
	ErrCodeCanceled
	// ErrCodeValidation indicates the request could not be built.
	ErrCodeValidation
	// ErrCodeCircuitOpen indicates the circuit breaker rejected the request.
	ErrCodeCircuitOpen
	// ErrCodeRateLimited indicates the local rate limiter rejected the request.
	ErrCodeRateLimited
	// ErrCodeStatus indicates a streaming request was answered with a non-2xx status.
	ErrCodeStatus
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeCanceled:
		return "canceled"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeCircuitOpen:
		return "circuit_open"
	case ErrCodeRateLimited:
		return "rate_limited"
	case ErrCodeStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Name returns the error-style name used as a problem title.
func (c ErrorCode) Name() string {
	switch c {
	case ErrCodeTimeout:
		return "TimeoutError"
	case ErrCodeConnection:
		return "NetworkError"
	case ErrCodeCanceled:
		return "AbortError"
	case ErrCodeValidation:
		return "RequestError"
	case ErrCodeCircuitOpen:
		return "CircuitOpenError"
	case ErrCodeRateLimited:
		return "RateLimitError"
	case ErrCodeStatus:
		return "HTTPError"
	default:
		return "Error"
	}
}

// Error is a structured transport error.
type Error struct {
	// StatusCode is set only for ErrCodeStatus.
	StatusCode int
	Code       ErrorCode
	Message    string
	// Body is the response body for ErrCodeStatus.
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Name returns the error code's name.
func (e *Error) Name() string {
	return e.Code.Name()
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(err error) *Error {
	return &Error{Code: ErrCodeTimeout, Message: err.Error(), Err: err}
}

// NewConnectionError creates a connection error.
func NewConnectionError(err error) *Error {
	return &Error{Code: ErrCodeConnection, Message: err.Error(), Err: err}
}

// NewCanceledError creates a cancellation error. It matches context.Canceled
// through errors.Is.
func NewCanceledError(err error) *Error {
	msg := "request canceled"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: ErrCodeCanceled, Message: msg, Err: context.Canceled}
}

// NewValidationError creates a request-building error.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// NewStatusError creates the error for a non-2xx answer to a streaming request.
func NewStatusError(statusCode int, body []byte) *Error {
	return &Error{
		StatusCode: statusCode,
		Code:       ErrCodeStatus,
		Message:    fmt.Sprintf("HTTP %d", statusCode),
		Body:       body,
	}
}

// classify maps a failed round trip to a transport error.
func classify(ctx context.Context, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return NewCanceledError(err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewTimeoutError(err)
	}
	return NewConnectionError(err)
}

func codeIs(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool { return codeIs(err, ErrCodeTimeout) }

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool { return codeIs(err, ErrCodeConnection) }

// IsCanceled checks if an error is a cancellation, typed or raw.
func IsCanceled(err error) bool {
	return codeIs(err, ErrCodeCanceled) || errors.Is(err, context.Canceled)
}

// IsCircuitOpen checks if an error is a circuit breaker rejection.
func IsCircuitOpen(err error) bool { return codeIs(err, ErrCodeCircuitOpen) }

// IsRateLimited checks if an error is a rate limiter rejection.
func IsRateLimited(err error) bool { return codeIs(err, ErrCodeRateLimited) }
