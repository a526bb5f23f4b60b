package problem

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"unicode"
)

// Titles of locally synthesized problems.
const (
	TitleRequestFailed   = "Request failed"
	TitleMaxAttempts     = "Max attempts exceeded"
	TitleParseError      = "ParseError"
	TitleConnectionError = "ConnectionError"
	TitleDecodeError     = "DecodeError"
	TitleCredentialError = "CredentialError"
)

// RequestFailed builds the problem for a non-success response whose body is
// not a problem document.
func RequestFailed(status int, rawText string) *Details {
	return &Details{Status: status, Title: TitleRequestFailed, Detail: rawText}
}

// MaxAttempts builds the terminal problem for an exhausted retry budget.
// last is the problem reported by the final attempt and may be nil.
func MaxAttempts(attempts int, last *Details) *Details {
	d := &Details{
		Title:  TitleMaxAttempts,
		Detail: fmt.Sprintf("request did not succeed after %d attempts", attempts),
	}
	if last != nil {
		d.Status = last.Status
		d.WithExtension("last", last.Title)
	}
	return d.WithExtension("attempts", attempts)
}

// FromError synthesizes a status-0 problem from a local failure. The title is
// the error's name: an explicit Name() if the error provides one, otherwise its
// dynamic type name.
func FromError(err error) *Details {
	if err == nil {
		return nil
	}
	if d, ok := As(err); ok {
		return d
	}
	return &Details{Title: errorName(err), Detail: err.Error(), Cause: err}
}

// Parse builds the non-fatal problem for a stream payload that failed to decode.
func Parse(err error) *Details {
	return &Details{Title: TitleParseError, Detail: err.Error(), Cause: err}
}

// Decode builds the problem for a success body that could not be decoded.
func Decode(status int, err error) *Details {
	return &Details{Status: status, Title: TitleDecodeError, Detail: err.Error(), Cause: err}
}

// ConnectionFailed builds the terminal stream problem once reconnects are exhausted.
func ConnectionFailed(attempts int, cause error) *Details {
	d := &Details{Title: TitleConnectionError, Detail: "connection failed", Cause: cause}
	if cause != nil {
		d.Detail = "connection failed: " + cause.Error()
	}
	return d.WithExtension("attempts", attempts)
}

// Credential builds the problem for a credential supplier failure.
func Credential(err error) *Details {
	return &Details{Title: TitleCredentialError, Detail: err.Error(), Cause: err}
}

type named interface{ Name() string }

func errorName(err error) string {
	var n named
	if stderrors.As(err, &n) && n.Name() != "" {
		return n.Name()
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		return "Error"
	}
	return name
}
