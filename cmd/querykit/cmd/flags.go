package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kbukum/querykit/resilience"
)

// parseHeaders turns "Name: value" pairs into a header map.
func parseHeaders(pairs []string) (http.Header, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	h := make(http.Header, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", p)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// parseQuery turns name=value pairs into query values.
func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	q := make(url.Values, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid query parameter %q, want name=value", p)
		}
		q.Add(name, value)
	}
	return q, nil
}

// parseBody resolves the --data flag. "@file" reads a file and "@-" reads
// stdin. Valid JSON is sent as application/json, anything else as raw bytes.
func parseBody(data string, stdin io.Reader) (any, error) {
	if data == "" {
		return nil, nil
	}
	raw := []byte(data)
	if name, ok := strings.CutPrefix(data, "@"); ok {
		var err error
		if name == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
	}
	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}
	return raw, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

func resilienceStrategy(s string) resilience.Strategy {
	if resilience.Strategy(s) == resilience.StrategyExponential {
		return resilience.StrategyExponential
	}
	return resilience.StrategyFixed
}
