package credential

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Supplier returns the credential for one attempt.
type Supplier func(ctx context.Context) (string, error)

// ErrMissing is returned by Require when the supplier produced no token.
var ErrMissing = errors.New("credential: no token available")

// Static always returns token.
func Static(token string) Supplier {
	return func(context.Context) (string, error) { return token, nil }
}

// Env reads the named environment variable on every call.
func Env(name string) Supplier {
	return func(context.Context) (string, error) {
		return strings.TrimSpace(os.Getenv(name)), nil
	}
}

// File reads a token file on every call, so rotated tokens are picked up
// without a restart.
func File(path string) Supplier {
	return func(context.Context) (string, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
}

// Require wraps s so an empty token becomes ErrMissing.
func Require(s Supplier) Supplier {
	return func(ctx context.Context) (string, error) {
		tok, err := s(ctx)
		if err != nil {
			return "", err
		}
		if tok == "" {
			return "", ErrMissing
		}
		return tok, nil
	}
}

// Resolve calls s, treating a nil supplier as "no credential".
func Resolve(ctx context.Context, s Supplier) (string, error) {
	if s == nil {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s(ctx)
}

// BearerHeader formats a token as an Authorization header value.
func BearerHeader(token string) string {
	return "Bearer " + token
}
