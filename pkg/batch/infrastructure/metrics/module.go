// Package metrics provides the Prometheus and OpenTelemetry backends of the core metrics
// ports, and the admin HTTP server exposing them.
package metrics

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

type decorateParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Config     *config.Config
	Prometheus *PrometheusRecorder
}

// decorateRecorder replaces the no-op recorder with the configured backend. A positive
// surfin.batch.metrics_async_buffer_size moves the backend behind an AsyncMetricRecorder.
func decorateRecorder(base metrics.MetricRecorder, p decorateParams) (metrics.MetricRecorder, error) {
	obs := p.Config.Surfin.Observability
	var backend metrics.MetricRecorder
	switch obs.Metrics.Exporter {
	case ExporterPrometheus:
		backend = p.Prometheus
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		mp, err := NewMeterProvider(context.Background(), obs.Metrics, obs.ServiceName)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{OnStop: func(ctx context.Context) error { return mp.Shutdown(ctx) }})
		if backend, err = newOtelRecorder(mp); err != nil {
			return nil, err
		}
	default:
		return base, nil
	}

	if size := p.Config.Surfin.Batch.MetricsAsyncBufferSize; size > 0 {
		async := NewAsyncMetricRecorder(size, backend)
		// Appended after the meter provider hook, so it runs first on stop.
		p.Lifecycle.Append(fx.Hook{OnStop: func(context.Context) error {
			async.Close()
			return nil
		}})
		logger.Debugf("MetricRecorder '%s' decorated with asynchronous wrapper.", obs.Metrics.Exporter)
		return async, nil
	}
	return backend, nil
}

func newOtelRecorder(mp *sdkmetric.MeterProvider) (metrics.MetricRecorder, error) {
	return NewOtelMetricRecorder(mp.Meter(instrumentationName))
}

// decorateTracer replaces the no-op tracer when a tracing exporter is configured.
func decorateTracer(base metrics.Tracer, lc fx.Lifecycle, cfg *config.Config) (metrics.Tracer, error) {
	obs := cfg.Surfin.Observability
	if obs.Tracing.Exporter == "" || obs.Tracing.Exporter == ExporterNone {
		return base, nil
	}
	tp, err := NewTracerProvider(context.Background(), obs.Tracing, obs.ServiceName)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return shutdownTracer(ctx, tp) }})
	return NewOtelTracer(tp), nil
}

func shutdownTracer(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if err := tp.ForceFlush(ctx); err != nil {
		logger.Warnf("Tracer: flush on shutdown failed: %v", err)
	}
	return tp.Shutdown(ctx)
}

// startAdminServer serves /metrics and /healthz when a listen address is configured.
func startAdminServer(lc fx.Lifecycle, cfg *config.Config, recorder *PrometheusRecorder) {
	addr := cfg.Surfin.Observability.Metrics.Addr
	if addr == "" {
		return
	}
	server := NewAdminServer(addr, NewAdminRouter(recorder.GetRegistry()))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return server.Start() },
		OnStop:  server.Shutdown,
	})
}

// Module selects the metric and tracing backends from the observability configuration.
// It decorates the no-op implementations provided by the core metrics module.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Decorate(decorateRecorder),
	fx.Decorate(decorateTracer),
	fx.Invoke(startAdminServer),
)
