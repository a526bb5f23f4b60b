package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kbukum/querykit/component"
	"github.com/kbukum/querykit/resilience"
)

func TestComponent_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		cfg     Config
		start   bool
		calls   int
		want    component.HealthStatus
		message string
	}{
		{name: "before start", cfg: Config{BaseURL: srv.URL}, want: component.StatusUnhealthy, message: "not started"},
		{name: "started", cfg: Config{BaseURL: srv.URL}, start: true, calls: 3, want: component.StatusHealthy},
		{
			name: "circuit open",
			cfg: Config{BaseURL: srv.URL, CircuitBreaker: &resilience.CircuitBreakerConfig{
				MaxFailures: 2, Timeout: time.Minute,
			}},
			start:   true,
			calls:   2,
			want:    component.StatusDegraded,
			message: "circuit open",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			comp := NewComponent(tt.cfg)
			if tt.start {
				if err := comp.Start(ctx); err != nil {
					t.Fatalf("Start: %v", err)
				}
				defer func() { _ = comp.Stop(ctx) }()
			}
			for range tt.calls {
				resp, err := comp.Adapter().Do(ctx, &Request{Method: http.MethodGet, Path: "/"})
				if err != nil {
					t.Fatalf("Do: %v", err)
				}
				if resp.StatusCode != http.StatusBadGateway {
					t.Fatalf("status = %d", resp.StatusCode)
				}
			}
			h := comp.Health(ctx)
			if h.Status != tt.want || h.Message != tt.message {
				t.Errorf("Health = %+v, want %s %q", h, tt.want, tt.message)
			}
			if h.Name != "http" {
				t.Errorf("Name = %q, want default http", h.Name)
			}
		})
	}
}

func TestComponent_CircuitOpenRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	comp := NewComponent(Config{BaseURL: srv.URL, CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 1}})
	ctx := context.Background()
	if err := comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := comp.Adapter().Do(ctx, &Request{Path: "/"}); err != nil {
		t.Fatalf("first Do: %v", err)
	}
	_, err := comp.Adapter().Do(ctx, &Request{Path: "/"})
	if !IsCircuitOpen(err) {
		t.Errorf("second Do error = %v, want circuit open", err)
	}
}

func TestComponent_Registry(t *testing.T) {
	reg := component.NewRegistry()
	comp := NewComponent(Config{Name: "api", BaseURL: "http://example.com"})
	if err := reg.Register(comp); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := reg.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if reg.Get("api") != comp || comp.Adapter() == nil {
		t.Fatal("adapter not built by StartAll")
	}

	desc := reg.Describe()
	if len(desc) != 1 || desc[0].Type != "http-adapter" || desc[0].Details != "http://example.com" {
		t.Errorf("Describe = %+v", desc)
	}
	if err := reg.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
}

func TestComponent_StartRejectsInvalidTLS(t *testing.T) {
	comp := NewComponent(Config{TLS: &TLSConfig{CAFile: "/does/not/exist.pem"}})
	if err := comp.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
	if comp.Adapter() != nil {
		t.Error("adapter should stay nil after a failed Start")
	}
	if err := comp.Stop(context.Background()); err != nil {
		t.Errorf("Stop after failed Start: %v", err)
	}
}
