package port

import (
	"context"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

// JobExecutionListener observes the boundaries of a job execution.
//
// An error from BeforeJob prevents the job from starting: the execution ends FAILED without
// running any step. An error from AfterJob is logged and does not change the final status.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution) error
	AfterJob(ctx context.Context, jobExecution *model.JobExecution) error
}

// StepExecutionListener observes the boundaries of a step execution.
//
// An error from BeforeStep prevents the step body from running and fails the step.
// AfterStep runs once the status is known and before it is persisted; it may replace the
// exit status with a custom code. An error from AfterStep is logged and swallowed.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution) error
	AfterStep(ctx context.Context, stepExecution *model.StepExecution) error
}

// ChunkListener observes chunk transactions. An error from BeforeChunk fails the chunk
// (it is rolled back); AfterChunk errors are logged.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) error
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution) error
	// AfterChunkError is called after a chunk was rolled back.
	AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error)
}

// ItemReadListener observes individual reads.
type ItemReadListener interface {
	BeforeRead(ctx context.Context)
	AfterRead(ctx context.Context, item interface{})
	OnReadError(ctx context.Context, err error)
}

// ItemProcessListener observes individual process calls. result is nil for a filtered item.
type ItemProcessListener interface {
	BeforeProcess(ctx context.Context, item interface{})
	AfterProcess(ctx context.Context, item interface{}, result interface{})
	OnProcessError(ctx context.Context, item interface{}, err error)
}

// ItemWriteListener observes chunk writes.
type ItemWriteListener interface {
	BeforeWrite(ctx context.Context, items []interface{})
	AfterWrite(ctx context.Context, items []interface{})
	OnWriteError(ctx context.Context, items []interface{}, err error)
}

// SkipListener is notified when a skip policy skips an item.
type SkipListener interface {
	OnSkipInRead(ctx context.Context, err error)
	OnSkipInProcess(ctx context.Context, item interface{}, err error)
	OnSkipInWrite(ctx context.Context, item interface{}, err error)
}

// RetryItemListener is notified before an item operation is retried.
type RetryItemListener interface {
	OnRetry(ctx context.Context, item interface{}, attempt int, err error)
}
