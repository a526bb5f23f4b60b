// Package observability wires OpenTelemetry tracing and metrics, and exposes
// the Recorder the query and stream engines report to.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("querykit"))
//	defer tp.Shutdown(ctx)
//
// Metrics go through a Recorder. NewOTelRecorder reports to an OTel meter;
// NewPrometheusRecorder registers collectors on a Prometheus registerer:
//
//	rec, err := observability.NewPrometheusRecorder(prometheus.DefaultRegisterer)
//	eng, err := query.New[User](transport, desc, query.WithRecorder(rec))
package observability
