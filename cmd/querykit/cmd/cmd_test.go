package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kbukum/querykit/problem"
	"github.com/kbukum/querykit/resilience"
)

// resetFlags restores every flag between runs of the shared rootCmd.
func resetFlags() {
	cfgFile, envFile, metricsAddr, logLevel, baseURL = "", "", "", "disabled", ""
	fetchFlags.method, fetchFlags.data, fetchFlags.kind, fetchFlags.output = "GET", "", "auto", ""
	fetchFlags.headers, fetchFlags.query = nil, nil
	fetchFlags.retry, fetchFlags.retryDelay, fetchFlags.retryStrategy = 0, "", ""
	watchFlags.authParam, watchFlags.reconnect, watchFlags.reconnectDelay = "", 0, ""
	watchFlags.ignore, watchFlags.query, watchFlags.honorRetry = nil, nil, false
	versionJSON = false
	for _, c := range []*cobra.Command{rootCmd, fetchCmd, watchCmd, versionCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--log-level", "disabled"}, args...))
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands_Registered(t *testing.T) {
	want := map[string]bool{"fetch": false, "watch": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s command not registered with rootCmd", name)
		}
	}
}

func TestFetch_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/users/1" || r.URL.Query().Get("expand") != "roles" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":1}`)
	}))
	defer srv.Close()

	out, err := execute(t, "--base-url", srv.URL, "fetch",
		"--retry", "2", "--retry-delay", "1ms", "-q", "expand=roles", "/users/1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if out != "{\"id\":1}\n" {
		t.Errorf("output = %q", out)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestFetch_PostsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if got := r.Header.Get("X-Tenant"); got != "acme" {
			t.Errorf("X-Tenant = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	out, err := execute(t, "--base-url", srv.URL, "fetch",
		"-X", "post", "-d", `{"name":"ada"}`, "-H", "X-Tenant: acme", "/users")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if strings.TrimSpace(out) != `{"name":"ada"}` {
		t.Errorf("output = %q", out)
	}
}

func TestFetch_PrintsProblem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"title":"Not Found","detail":"no user"}`)
	}))
	defer srv.Close()

	out, err := execute(t, "--base-url", srv.URL, "fetch", "--retry", "3", "--retry-delay", "1ms", "/users/9")
	p, ok := problem.As(err)
	if !ok {
		t.Fatalf("expected problem error, got %v", err)
	}
	if p.Status != http.StatusNotFound || p.Title != "Not Found" {
		t.Errorf("problem = %+v", p)
	}
	var printed map[string]any
	if err := json.Unmarshal([]byte(out), &printed); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if printed["detail"] != "no user" {
		t.Errorf("printed = %v", printed)
	}
}

func TestFetch_WritesBinaryOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="r.pdf"`)
		_, _ = w.Write([]byte{0x25, 0x50, 0x44, 0x46, 0x00})
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "out.pdf")
	out, err := execute(t, "--base-url", srv.URL, "fetch", "--kind", "binary", "-o", dst, "/reports/1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x25, 0x50, 0x44, 0x46, 0x00}) {
		t.Errorf("file = %v", got)
	}
}

func TestWatch_PrintsStatesUntilTerminalProblem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"n\":1}\n\nevent: ping\ndata: x\n\ndata: {\"n\":2}\n\n")
	}))
	defer srv.Close()

	out, err := execute(t, "--base-url", srv.URL, "watch", "--reconnect", "0", "/events")
	p, ok := problem.As(err)
	if !ok || p.Title != problem.TitleConnectionError {
		t.Fatalf("expected connection problem, got %v", err)
	}
	for _, want := range []string{`"data":{"n":1}`, `"data":{"n":2}`, `"title":"ConnectionError"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, `"x"`) {
		t.Errorf("ping event was published:\n%s", out)
	}
}

func TestVersion_JSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"X-A: 1", "x-a:2", "Accept: text/plain"})
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Values("X-A"); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("X-A = %v", got)
	}
	if h.Get("Accept") != "text/plain" {
		t.Errorf("Accept = %q", h.Get("Accept"))
	}
	for _, bad := range []string{"novalue", ": empty"} {
		if _, err := parseHeaders([]string{bad}); err == nil {
			t.Errorf("parseHeaders(%q) should fail", bad)
		}
	}
}

func TestParseQuery(t *testing.T) {
	q, err := parseQuery([]string{"a=1", "a=2", "b="})
	if err != nil {
		t.Fatal(err)
	}
	if q.Encode() != "a=1&a=2&b=" {
		t.Errorf("query = %s", q.Encode())
	}
	if _, err := parseQuery([]string{"=x"}); err == nil {
		t.Error("empty name should fail")
	}
}

func TestParseBody(t *testing.T) {
	file := filepath.Join(t.TempDir(), "body.txt")
	if err := os.WriteFile(file, []byte("plain"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		data  string
		stdin string
		want  any
	}{
		{"empty", "", "", nil},
		{"json", `{"a":1}`, "", json.RawMessage(`{"a":1}`)},
		{"raw", "a=b", "", []byte("a=b")},
		{"file", "@" + file, "", []byte("plain")},
		{"stdin", "@-", `[1,2]`, json.RawMessage(`[1,2]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBody(tt.data, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatal(err)
			}
			switch want := tt.want.(type) {
			case nil:
				if got != nil {
					t.Errorf("got %v, want nil", got)
				}
			case json.RawMessage:
				g, ok := got.(json.RawMessage)
				if !ok || !bytes.Equal(g, want) {
					t.Errorf("got %#v, want %s", got, want)
				}
			case []byte:
				g, ok := got.([]byte)
				if !ok || !bytes.Equal(g, want) {
					t.Errorf("got %#v, want %s", got, want)
				}
			}
		})
	}

	if _, err := parseBody("@"+filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("missing file should fail")
	}
}

func TestParseDurationAndStrategy(t *testing.T) {
	if d, err := parseDuration("250ms"); err != nil || d.Milliseconds() != 250 {
		t.Errorf("parseDuration = %v, %v", d, err)
	}
	if _, err := parseDuration("-1s"); err == nil {
		t.Error("negative duration should fail")
	}
	if resilienceStrategy("exponential") != resilience.StrategyExponential {
		t.Error("exponential not recognized")
	}
	if resilienceStrategy("bogus") != resilience.StrategyFixed {
		t.Error("unknown strategy should fall back to fixed")
	}
}
