// Package metrics declares the observability ports of the engine: a MetricRecorder for
// counters and durations and a Tracer for spans. Backends live in infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

// Stage names used as the reason of item skip and retry metrics.
const (
	StageRead    = "read"
	StageProcess = "process"
	StageWrite   = "write"
)

// MetricRecorder records metrics of job, step, chunk and item events.
//
// Implementations must be safe for concurrent use: distinct job executions record from
// their own goroutines.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	// RecordJobEnd records the terminal status and duration of a JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	// RecordStepStart records the start of a StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	// RecordStepEnd records the terminal status and duration of a StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordItemRead records one successful read.
	RecordItemRead(ctx context.Context, stepName string)
	// RecordItemProcess records one successful process call.
	RecordItemProcess(ctx context.Context, stepName string)
	// RecordItemFilter records an item dropped by the processor.
	RecordItemFilter(ctx context.Context, stepName string)
	// RecordItemWrite records count items written in one chunk.
	RecordItemWrite(ctx context.Context, stepName string, count int)
	// RecordItemSkip records a skipped item. stage is one of the Stage constants.
	RecordItemSkip(ctx context.Context, stepName string, stage string)
	// RecordItemRetry records a retried item operation. stage is one of the Stage constants.
	RecordItemRetry(ctx context.Context, stepName string, stage string)

	// RecordChunkCommit records a committed chunk of count items.
	RecordChunkCommit(ctx context.Context, stepName string, count int)
	// RecordChunkRollback records a rolled back chunk.
	RecordChunkRollback(ctx context.Context, stepName string)

	// RecordLaunchRejected records a launch refused before any execution ran, for example
	// an overlapping scheduled fire. reason is a short machine-readable label.
	RecordLaunchRejected(ctx context.Context, jobName string, reason string)

	// RecordDuration records the duration of an arbitrary operation.
	//
	// Parameters:
	//   name: The metric name, e.g. "file_flush_duration".
	//   tags: Additional labels; keys must be stable across calls for the same name.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
