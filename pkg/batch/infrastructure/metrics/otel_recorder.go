package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
)

// OtelMetricRecorder is an implementation of metrics.MetricRecorder on an OpenTelemetry
// meter. Exporting is left to the MeterProvider the meter comes from.
type OtelMetricRecorder struct {
	jobs           metric.Int64Counter
	jobsRunning    metric.Int64UpDownCounter
	jobDuration    metric.Float64Histogram
	steps          metric.Int64Counter
	stepDuration   metric.Float64Histogram
	items          metric.Int64Counter
	skips          metric.Int64Counter
	retries        metric.Int64Counter
	chunks         metric.Int64Counter
	launchRejected metric.Int64Counter
	operations     metric.Float64Histogram
}

// NewOtelMetricRecorder creates the instruments of the recorder on meter.
func NewOtelMetricRecorder(meter metric.Meter) (*OtelMetricRecorder, error) {
	var (
		r   OtelMetricRecorder
		err error
	)
	if r.jobs, err = meter.Int64Counter("batch.job.executions", metric.WithDescription("Finished job executions by status.")); err != nil {
		return nil, err
	}
	if r.jobsRunning, err = meter.Int64UpDownCounter("batch.job.running", metric.WithDescription("Running job executions.")); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("batch.job.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.steps, err = meter.Int64Counter("batch.step.executions", metric.WithDescription("Finished step executions by status.")); err != nil {
		return nil, err
	}
	if r.stepDuration, err = meter.Float64Histogram("batch.step.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.items, err = meter.Int64Counter("batch.items", metric.WithDescription("Items by step and operation.")); err != nil {
		return nil, err
	}
	if r.skips, err = meter.Int64Counter("batch.item.skips"); err != nil {
		return nil, err
	}
	if r.retries, err = meter.Int64Counter("batch.item.retries"); err != nil {
		return nil, err
	}
	if r.chunks, err = meter.Int64Counter("batch.chunks", metric.WithDescription("Chunks by step and outcome.")); err != nil {
		return nil, err
	}
	if r.launchRejected, err = meter.Int64Counter("batch.job.launch_rejected"); err != nil {
		return nil, err
	}
	if r.operations, err = meter.Float64Histogram("batch.operation.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *OtelMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobsRunning.Add(ctx, 1, metric.WithAttributes(attribute.String("job", execution.JobName)))
}

func (r *OtelMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	job := attribute.String("job", execution.JobName)
	status := attribute.String("status", execution.Status.String())
	r.jobsRunning.Add(ctx, -1, metric.WithAttributes(job))
	r.jobs.Add(ctx, 1, metric.WithAttributes(job, status))
	r.jobDuration.Record(ctx, execution.Duration().Seconds(), metric.WithAttributes(job, status))
}

func (r *OtelMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {}

func (r *OtelMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	attrs := metric.WithAttributes(
		attribute.String("job", jobNameOf(execution)),
		attribute.String("step", execution.StepName),
		attribute.String("status", execution.Status.String()),
	)
	r.steps.Add(ctx, 1, attrs)
	r.stepDuration.Record(ctx, stepDuration(execution).Seconds(), attrs)
}

func (r *OtelMetricRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.item(ctx, stepName, "read", 1)
}

func (r *OtelMetricRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.item(ctx, stepName, "process", 1)
}

func (r *OtelMetricRecorder) RecordItemFilter(ctx context.Context, stepName string) {
	r.item(ctx, stepName, "filter", 1)
}

func (r *OtelMetricRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.item(ctx, stepName, "write", int64(count))
}

func (r *OtelMetricRecorder) item(ctx context.Context, stepName, operation string, n int64) {
	r.items.Add(ctx, n, metric.WithAttributes(attribute.String("step", stepName), attribute.String("operation", operation)))
}

func (r *OtelMetricRecorder) RecordItemSkip(ctx context.Context, stepName string, stage string) {
	r.skips.Add(ctx, 1, metric.WithAttributes(attribute.String("step", stepName), attribute.String("stage", stage)))
}

func (r *OtelMetricRecorder) RecordItemRetry(ctx context.Context, stepName string, stage string) {
	r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("step", stepName), attribute.String("stage", stage)))
}

func (r *OtelMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("step", stepName), attribute.String("outcome", "commit")))
}

func (r *OtelMetricRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("step", stepName), attribute.String("outcome", "rollback")))
}

func (r *OtelMetricRecorder) RecordLaunchRejected(ctx context.Context, jobName string, reason string) {
	r.launchRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("job", jobName), attribute.String("reason", reason)))
}

func (r *OtelMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operations.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OtelMetricRecorder)(nil)
