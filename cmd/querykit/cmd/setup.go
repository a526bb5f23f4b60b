package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbukum/querykit/component"
	"github.com/kbukum/querykit/config"
	"github.com/kbukum/querykit/credential"
	"github.com/kbukum/querykit/httpclient"
	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/observability"
	"github.com/kbukum/querykit/tracker"
)

// app holds everything a command needs to build engines.
type app struct {
	registry   *component.Registry
	client     *httpclient.Component
	credential credential.Supplier
	tracker    tracker.Tracker
	recorder   observability.Recorder
	shutdown   []func(context.Context) error
}

// setup starts the HTTP adapter and the configured observability exporters.
// The caller must call close.
func setup(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.WithComponent("cli")
	rt := &app{registry: component.NewRegistry()}

	supplier, err := cfg.Client.Credential.Supplier()
	if err != nil {
		return nil, err
	}
	rt.credential = supplier

	var recorders []observability.Recorder
	obs := cfg.Observability

	if obs.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, obs.Tracing.TracerConfig)
		if err != nil {
			return nil, err
		}
		rt.shutdown = append(rt.shutdown, tp.Shutdown)
	}
	if obs.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, obs.Metrics.MeterConfig)
		if err != nil {
			_ = rt.close(ctx)
			return nil, err
		}
		rt.shutdown = append(rt.shutdown, mp.Shutdown)
		rec, err := observability.NewOTelRecorder(observability.Meter())
		if err != nil {
			_ = rt.close(ctx)
			return nil, err
		}
		recorders = append(recorders, rec)
	}
	if obs.Prometheus.Enabled {
		reg := prometheus.NewRegistry()
		rec, err := observability.NewPrometheusRecorder(reg)
		if err != nil {
			_ = rt.close(ctx)
			return nil, err
		}
		recorders = append(recorders, rec)
		if err := rt.registry.Register(observability.NewMetricsServer(obs.Prometheus.Addr, reg, rt.registry)); err != nil {
			_ = rt.close(ctx)
			return nil, err
		}
	}
	rt.recorder = observability.Multi(recorders...)

	rt.tracker = tracker.NewLogger(log)
	if obs.Tracing.Enabled {
		rt.tracker = tracker.Multi(rt.tracker, tracker.NewSpan())
	}

	rt.client = httpclient.NewComponent(cfg.Client.Config, httpclient.WithLogger(logger.Get("httpclient")))
	if err := rt.registry.Register(rt.client); err != nil {
		_ = rt.close(ctx)
		return nil, err
	}
	if err := rt.registry.StartAll(ctx); err != nil {
		_ = rt.close(ctx)
		return nil, err
	}

	for _, d := range rt.registry.Describe() {
		log.Debug("Component ready", logger.Fields("name", d.Name, "type", d.Type, "details", d.Details))
	}
	return rt, nil
}

// start registers c and starts it after the components already running.
func (rt *app) start(ctx context.Context, c component.Component) error {
	if err := rt.registry.Register(c); err != nil {
		return err
	}
	return rt.registry.StartAll(ctx)
}

// close stops components in reverse order, then flushes exporters.
func (rt *app) close(ctx context.Context) error {
	errs := []error{rt.registry.StopAll(ctx)}
	for i := len(rt.shutdown) - 1; i >= 0; i-- {
		if err := rt.shutdown[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("observability shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
