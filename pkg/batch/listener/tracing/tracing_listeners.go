// Package tracing adds job and step lifecycle events to the spans opened by the job
// runner and the step lifecycle.
package tracing

import (
	"context"
	"errors"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
)

// Event names recorded on the current span.
const (
	EventJobBefore  = "job.before"
	EventJobAfter   = "job.after"
	EventStepBefore = "step.before"
	EventStepAfter  = "step.after"
	EventChunkError = "chunk.rollback"
)

// TracingJobListener records job lifecycle events and job failures.
type TracingJobListener struct {
	tracer metrics.Tracer
}

func NewTracingJobListener(tracer metrics.Tracer) *TracingJobListener {
	return &TracingJobListener{tracer: tracer}
}

func (l *TracingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) error {
	l.tracer.RecordEvent(ctx, EventJobBefore, map[string]interface{}{
		"batch.job.name":          jobExecution.JobName,
		"batch.job.execution_id":  jobExecution.ID,
		"batch.job.parameters":    jobExecution.Parameters.String(),
		"batch.job.restart_count": jobExecution.RestartCount,
	})
	return nil
}

func (l *TracingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) error {
	l.tracer.RecordEvent(ctx, EventJobAfter, map[string]interface{}{
		"batch.status":      jobExecution.Status.String(),
		"batch.exit_status": string(jobExecution.ExitStatus),
		"batch.steps":       len(jobExecution.StepExecutions),
	})
	if jobExecution.Status == model.BatchStatusFailed {
		for _, f := range jobExecution.Failures {
			l.tracer.RecordError(ctx, jobExecution.JobName, errors.New(f))
		}
	}
	return nil
}

var _ port.JobExecutionListener = (*TracingJobListener)(nil)

// TracingStepListener records step lifecycle events with the step counters, and chunk
// rollbacks.
type TracingStepListener struct {
	tracer metrics.Tracer
}

func NewTracingStepListener(tracer metrics.Tracer) *TracingStepListener {
	return &TracingStepListener{tracer: tracer}
}

func (l *TracingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) error {
	l.tracer.RecordEvent(ctx, EventStepBefore, map[string]interface{}{
		"batch.step.name": stepExecution.StepName,
	})
	return nil
}

func (l *TracingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) error {
	l.tracer.RecordEvent(ctx, EventStepAfter, map[string]interface{}{
		"batch.status":           stepExecution.Status.String(),
		"batch.exit_status":      string(stepExecution.ExitStatus),
		"batch.step.read_count":  stepExecution.ReadCount,
		"batch.step.write_count": stepExecution.WriteCount,
		"batch.step.skip_count":  stepExecution.SkipCount(),
	})
	return nil
}

func (l *TracingStepListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

func (l *TracingStepListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

func (l *TracingStepListener) AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	l.tracer.RecordEvent(ctx, EventChunkError, map[string]interface{}{
		"batch.step.name":           stepExecution.StepName,
		"batch.step.rollback_count": stepExecution.RollbackCount,
		"batch.error":               err.Error(),
	})
}

var (
	_ port.StepExecutionListener = (*TracingStepListener)(nil)
	_ port.ChunkListener         = (*TracingStepListener)(nil)
)
