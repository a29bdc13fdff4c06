// Package usecase holds the application services of the engine: launching jobs, operating
// running executions and exploring batch metadata.
package usecase

import (
	"context"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

// JobLauncher starts jobs by name.
type JobLauncher interface {
	// Launch creates a JobExecution of jobName and runs it asynchronously.
	//
	// Parameters:
	//   ctx: Cancelling ctx stops the launched execution.
	//   jobName: The registry name of the job.
	//   params: The launch parameters. The job's incrementer, if any, is applied first.
	//   opts: Launch options such as Exclusive.
	//
	// Returns:
	//   *model.JobExecution: A snapshot of the created execution; use Wait for the outcome.
	//   error: A *exception.ValidationError, *exception.DuplicateExecutionError,
	//     *exception.JobExecutionAlreadyRunningError or *exception.RepositoryError when the
	//     launch is rejected. No job runs in that case.
	Launch(ctx context.Context, jobName string, params model.JobParameters, opts ...LaunchOption) (*model.JobExecution, error)

	// Wait blocks until the execution is terminal or ctx is done and returns its final record.
	Wait(ctx context.Context, executionID string) (*model.JobExecution, error)
}

// JobOperator controls executions launched by a JobLauncher.
type JobOperator interface {
	// Stop requests a stop. The execution ends STOPPED after its current chunk or step.
	Stop(ctx context.Context, executionID string) error

	// Restart launches the instance of a FAILED or STOPPED execution again with the same
	// parameters and returns the new execution.
	Restart(ctx context.Context, executionID string) (*model.JobExecution, error)
}

// JobExplorer is a read-only view of batch metadata.
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution by its ID.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves the JobExecutions of a JobInstance, latest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetLastJobExecution retrieves the latest JobExecution of a JobInstance.
	GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)

	// GetRunningJobExecutions returns the unfinished executions of jobName.
	GetRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)

	// GetJobInstance retrieves a JobInstance by its ID.
	GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error)

	// GetJobInstances returns the instances of jobName, newest first.
	GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error)

	// GetJobNames returns the names of all jobs with recorded instances.
	GetJobNames(ctx context.Context) ([]string, error)

	// GetParameters retrieves the JobParameters of a JobExecution.
	GetParameters(ctx context.Context, executionID string) (model.JobParameters, error)
}
