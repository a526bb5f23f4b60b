package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newJSONLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, "test-svc", buf)
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info")
	l.Info("attempt finished", Fields(FieldAttempt, 2, FieldStatus, 503))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "attempt finished" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry[FieldAttempt] != float64(2) || entry[FieldStatus] != float64(503) {
		t.Errorf("expected fields, got %v", entry)
	}
	if entry["service"] != "test-svc" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "invalid-level")
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected info-level behaviour, got %q", buf.String())
	}
}

func TestWithComponentAndContext(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info").WithComponent("stream")
	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.WithContext(ctx).Info("open")

	out := buf.String()
	if !strings.Contains(out, `"component":"stream"`) {
		t.Errorf("expected component field, got %q", out)
	}
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("expected request id field, got %q", out)
	}
}

func TestWithContextWithoutRequestID(t *testing.T) {
	l := NewDefault("test")
	if got := l.WithContext(context.Background()); got != l {
		t.Error("expected same logger when context has no request id")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf, "info").WithError(errors.New("boom")).Error("failed")
	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Errorf("expected error field, got %q", buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "console", NoColor: true}, "svc", &buf)
	l.Warn("reconnecting")
	if !strings.Contains(buf.String(), "[WAR]") || !strings.Contains(buf.String(), "reconnecting") {
		t.Errorf("unexpected console output %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	// Must not panic.
	Nop().Error("ignored", Fields("k", "v"))
}

func TestGlobalLogger(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := Nop()
	Register("my-component", l)
	if Get("my-component") != l {
		t.Error("expected Get to return the registered logger")
	}
	if Get("unregistered-component") == nil {
		t.Error("expected non-nil logger for unregistered component")
	}
}

func TestRegisterDefaults(t *testing.T) {
	Init(Config{Level: "info", Format: "json"})
	RegisterDefaults()
	for _, name := range []string{"query", "stream", "httpclient"} {
		if Get(name) == nil {
			t.Errorf("expected non-nil logger for %q", name)
		}
	}
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" || !cfg.Timestamp {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	got := Fields("op", "save", "id", 42, "trailing")
	if len(got) != 2 || got["op"] != "save" || got["id"] != 42 {
		t.Errorf("unexpected fields: %v", got)
	}
	m := MergeWithError(nil, errors.New("x"))
	if m[FieldError] != "x" {
		t.Errorf("unexpected merge: %v", m)
	}
	m = MergeWithDuration(Fields(FieldAttempt, 1), 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) || m[FieldAttempt] != 1 {
		t.Errorf("unexpected duration merge: %v", m)
	}
	e := ErrorFields("stream", errors.New("closed"))
	if e["operation"] != "stream" || e[FieldError] != "closed" {
		t.Errorf("unexpected error fields: %v", e)
	}
}
