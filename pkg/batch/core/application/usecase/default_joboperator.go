package usecase

import (
	"context"
	"fmt"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// DefaultJobOperator is the default implementation of the JobOperator interface.
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	jobLauncher   *SimpleJobLauncher
}

// Verify that DefaultJobOperator implements the JobOperator interface.
var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator creates a DefaultJobOperator acting on executions of launcher.
func NewDefaultJobOperator(jobRepository repository.JobRepository, launcher *SimpleJobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{jobRepository: jobRepository, jobLauncher: launcher}
}

// Stop implements JobOperator. A finished execution is left unchanged and reported as not
// running.
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Stop method called. Execution ID: %s", executionID)
	je, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("Failed to load JobExecution (ID: %s)", executionID), err, false, false)
	}
	if je.Status.IsFinished() {
		return fmt.Errorf("%w: %s is %s", ErrJobNotRunning, executionID, je.Status)
	}
	return o.jobLauncher.Stop(executionID)
}

// Restart implements JobOperator.
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID string) (*model.JobExecution, error) {
	logger.Infof("JobOperator: Restart method called. Execution ID: %s", executionID)

	prev, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("Restart processing error: Failed to load JobExecution (ID: %s)", executionID), err, false, false)
	}
	if !prev.Status.IsRestartable() {
		return nil, exception.NewBatchErrorf("job_operator", "Restart processing error: JobExecution (ID: %s) is not in a restartable state (current status: %s)", executionID, prev.Status)
	}

	next, err := o.jobLauncher.Launch(ctx, prev.JobName, prev.Parameters, WithoutIncrement())
	if err != nil {
		return nil, err
	}
	logger.Infof("Restart of Job '%s' (Execution ID: %s) started. New execution ID: %s", prev.JobName, executionID, next.ID)
	return next, nil
}
