package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// ErrJobExecutionNotFound is the error returned when a JobExecution is not found.
var ErrJobExecutionNotFound = errors.New("job execution not found")

func init() {
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
}

type JobExecution interface {
	// CreateJobExecution opens a new execution of (jobName, params).
	// The JobInstance is found or created. The call fails with
	// *exception.DuplicateExecutionError when an execution of the instance COMPLETED, and with
	// *exception.JobExecutionAlreadyRunningError when one is still running. Otherwise the new
	// execution inherits the job ExecutionContext of the previous one and increments RestartCount.
	// Concurrent calls with the same key are serialized.
	CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)

	// SaveJobExecution persists a new JobExecution.
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error

	// UpdateJobExecution updates the state of an existing JobExecution.
	// A stored terminal status cannot be replaced by a different one, and a stale Version
	// is reported as an optimistic locking failure. On success jobExecution.Version is incremented.
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error

	// FindJobExecutionByID finds a JobExecution by its ID, with its StepExecutions.
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)

	// FindLatestJobExecution returns the most recent execution of a JobInstance.
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error)

	// FindJobExecutionsByJobInstance finds all JobExecutions of the JobInstance, latest first.
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error)

	// FindRunningJobExecutions returns the executions of jobName whose status is not finished.
	FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)
}
