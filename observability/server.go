package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbukum/querykit/component"
	"github.com/kbukum/querykit/logger"
)

const readHeaderTimeout = 5 * time.Second

// MetricsServer serves /metrics from a Prometheus gatherer and, when a
// registry is attached, /health from its components.
type MetricsServer struct {
	addr     string
	gatherer prometheus.Gatherer
	registry *component.Registry
	log      *logger.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	serveErr chan error
}

var (
	_ component.Component   = (*MetricsServer)(nil)
	_ component.Describable = (*MetricsServer)(nil)
)

// NewMetricsServer creates a server listening on addr. reg may be nil.
func NewMetricsServer(addr string, g prometheus.Gatherer, reg *component.Registry) *MetricsServer {
	return &MetricsServer{
		addr:     addr,
		gatherer: g,
		registry: reg,
		log:      logger.WithComponent("metrics"),
	}
}

// Name returns the component name.
func (s *MetricsServer) Name() string { return "metrics" }

// Addr returns the bound address once started, else the configured one.
func (s *MetricsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler returns the HTTP handler without starting a listener.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.registry != nil {
		mux.HandleFunc("/health", s.health)
	}
	return mux
}

// Start binds the listener and serves in the background.
func (s *MetricsServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: readHeaderTimeout}
	s.serveErr = make(chan error, 1)

	go func(srv *http.Server, errc chan<- error) {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}(s.srv, s.serveErr)

	s.log.Info("Metrics server listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (s *MetricsServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, errc := s.srv, s.serveErr
	s.srv, s.listener = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-errc
}

// Health reports unhealthy until started.
func (s *MetricsServer) Health(_ context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := component.Health{Name: s.Name(), Status: component.StatusHealthy}
	if s.srv == nil {
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	}
	return h
}

// Describe returns the component description.
func (s *MetricsServer) Describe() component.Description {
	return component.Description{Name: s.Name(), Type: "metrics-server", Details: s.addr}
}

func (s *MetricsServer) health(w http.ResponseWriter, r *http.Request) {
	all := s.registry.HealthAll(r.Context())
	code := http.StatusOK
	for _, h := range all {
		if h.Status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(all)
}
