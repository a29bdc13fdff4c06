// Package listener collects the stock job and step listeners into the default set the
// application attaches to every job it assembles.
package listener

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	step "github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/listener/logging"
	listenermetrics "github.com/tigerroll/surfin-tutorial/pkg/batch/listener/metrics"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/listener/notification"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/listener/tracing"
)

// Defaults holds the listeners attached to every job and step of the application.
type Defaults struct {
	Job    []port.JobExecutionListener
	Step   []interface{}
	tracer metrics.Tracer
}

// DefaultsParams are the dependencies of NewDefaults.
type DefaultsParams struct {
	fx.In
	Recorder metrics.MetricRecorder
	Tracer   metrics.Tracer
	Notifier notification.Notifier
}

// NewDefaults builds the default listener set:
//
//   - job: logging, tracing events and completion notification;
//   - step: logging, item logging, the metrics bridge and tracing events.
func NewDefaults(p DefaultsParams) *Defaults {
	return &Defaults{
		Job: []port.JobExecutionListener{
			logging.NewLoggingJobListener(),
			tracing.NewTracingJobListener(p.Tracer),
			notification.NewNotificationListener(p.Notifier),
		},
		Step: []interface{}{
			logging.NewLoggingStepListener(),
			logging.NewLoggingChunkListener(),
			logging.NewLoggingItemListener(),
			listenermetrics.NewMetricsStepListener(p.Recorder),
			tracing.NewTracingStepListener(p.Tracer),
		},
		tracer: p.Tracer,
	}
}

// JobOptions returns FlowJob options registering the default job listeners, followed by
// extra. Extra listeners are notified after the defaults.
func (d *Defaults) JobOptions(extra ...port.JobExecutionListener) []runner.JobOption {
	listeners := append(append([]port.JobExecutionListener{}, d.Job...), extra...)
	return []runner.JobOption{
		runner.WithListeners(listeners...),
		runner.WithTracer(d.tracer),
	}
}

// StepOptions returns step options registering the default step listeners and the tracer
// opening step spans.
func (d *Defaults) StepOptions() []step.Option {
	opts := make([]step.Option, 0, len(d.Step)+1)
	for _, l := range d.Step {
		opts = append(opts, step.WithListener(l))
	}
	return append(opts, step.WithTracer(d.tracer))
}

// Module provides the logging notifier and the default listener set.
var Module = fx.Options(
	fx.Provide(fx.Annotate(notification.NewLoggingNotifier, fx.As(new(notification.Notifier)))),
	fx.Provide(NewDefaults),
)
