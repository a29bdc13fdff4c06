// Package port defines the core interfaces (ports) of the batch engine: jobs, steps,
// the item pipeline, tasklets, listeners, validators and incrementers.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
)

// ErrNoMoreItems is returned by ItemReader.Read when the input is exhausted.
// io.EOF is accepted as an equivalent signal.
var ErrNoMoreItems = errors.New("no more items to read")

// ErrFilterItem may be returned by ItemProcessor.Process to drop an item from the chunk.
// Returning a nil pointer, map, slice or interface has the same effect.
var ErrFilterItem = errors.New("item filtered by processor")

// Job is an executable batch job definition.
type Job interface {
	// JobName returns the logical name of the job. It is the registry key used at launch.
	JobName() string
	// Run executes the job flow for jobExecution until it reaches a terminal status.
	//
	// Parameters:
	//   ctx: Cancelling ctx stops the job after the current chunk or step.
	//   jobExecution: The execution to drive. Its status is updated in place and persisted.
	//
	// Returns:
	//   error: The failure that ended the job, if any.
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	// ValidateParameters checks launch parameters before any execution record is created.
	//
	// Returns:
	//   error: A *exception.ValidationError when the parameters are rejected.
	ValidateParameters(params model.JobParameters) error
	// Incrementer returns the parameters incrementer of the job, or nil.
	Incrementer() JobParametersIncrementer
	// IsRestartable reports whether a FAILED or STOPPED instance may be launched again.
	IsRestartable() bool
}

// Step is a single unit of a job flow: a tasklet step or a chunk-oriented step.
type Step interface {
	// StepName returns the unique name of the step within its job.
	StepName() string
	// Execute runs the step body for stepExecution and records its terminal status.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   stepExecution: The execution record; its JobExecution gives access to the job context.
	//
	// Returns:
	//   error: A *exception.StepFailure when the step ended FAILED.
	Execute(ctx context.Context, stepExecution *model.StepExecution) error
}

// ItemReader produces the input items of a chunk-oriented step.
// T is the type of item read.
type ItemReader[T any] interface {
	// Open acquires resources and restores the read position from the step context.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   ec: The step ExecutionContext; on restart it holds the state saved by Update.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Read returns the next item, or ErrNoMoreItems (or io.EOF) when the input is exhausted.
	Read(ctx context.Context) (T, error)
	// Update saves the current read position into ec. It is called before each checkpoint.
	Update(ctx context.Context, ec model.ExecutionContext) error
	// Close releases resources.
	Close(ctx context.Context) error
}

// ItemProcessor transforms an input item into an output item.
// I is the input type, O is the output type.
type ItemProcessor[I, O any] interface {
	// Process transforms item. Returning ErrFilterItem or a nil output drops the item.
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter consumes the processed items of a chunk.
// T is the type of item written.
type ItemWriter[T any] interface {
	// Open acquires resources, restoring state from the step context where applicable.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write writes one chunk of items inside transaction t.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   t: The chunk transaction. Database writers write through it; other writers register
	//      commit callbacks on it so the chunk becomes visible only on commit.
	//   items: At most chunk-size items, never empty.
	Write(ctx context.Context, t tx.Tx, items []T) error
	// Update saves writer state into ec before each checkpoint.
	Update(ctx context.Context, ec model.ExecutionContext) error
	// Close flushes and releases resources.
	Close(ctx context.Context) error
}

// Tasklet is a single unit of work executed by a tasklet step.
type Tasklet interface {
	// Execute performs the work. The step calls Execute again while it returns
	// model.RepeatStatusContinuable. A custom exit code may be set with
	// stepExecution.SetExitStatus.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error)
}

// TaskletFunc adapts a function to the Tasklet interface.
type TaskletFunc func(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error)

// Execute calls f.
func (f TaskletFunc) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	return f(ctx, stepExecution)
}

// JobParametersValidator checks launch parameters.
type JobParametersValidator interface {
	// Validate returns an error describing why params are rejected, or nil.
	Validate(params model.JobParameters) error
}

// JobParametersValidatorFunc adapts a function to JobParametersValidator.
type JobParametersValidatorFunc func(params model.JobParameters) error

// Validate calls f.
func (f JobParametersValidatorFunc) Validate(params model.JobParameters) error {
	return f(params)
}

// JobParametersIncrementer derives the parameters of the next run from the given ones.
type JobParametersIncrementer interface {
	// GetNext returns a new JobParameters; params is not modified.
	GetNext(params model.JobParameters) model.JobParameters
}

type contextKey string

const stepExecutionKey contextKey = "stepExecution"

// GetContextWithStepExecution stores a StepExecution in the Context.
func GetContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, stepExecutionKey, se)
}

// GetStepExecutionFromContext retrieves the StepExecution stored by GetContextWithStepExecution,
// or nil.
func GetStepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(stepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
