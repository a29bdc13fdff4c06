package usecase

import (
	"context"
	"errors"
	"fmt"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// SimpleJobExplorer queries batch metadata through a JobRepository.
type SimpleJobExplorer struct {
	jobRepository repository.JobRepository
}

// Verify that SimpleJobExplorer implements the JobExplorer interface.
var _ JobExplorer = (*SimpleJobExplorer)(nil)

// NewSimpleJobExplorer creates a new instance of SimpleJobExplorer.
func NewSimpleJobExplorer(jobRepository repository.JobRepository) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobRepository: jobRepository}
}

// GetJobExecution retrieves a JobExecution by its ID.
func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobExecution (ID: %s)", executionID), err, false, false)
	}
	return jobExecution, nil
}

// GetJobExecutions retrieves the JobExecutions of a JobInstance. An unknown instance has none.
func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	jobInstance, err := e.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if errors.Is(err, repository.ErrJobInstanceNotFound) {
		logger.Warnf("JobInstance (ID: %s) not found.", instanceID)
		return []*model.JobExecution{}, nil
	}
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobInstance (ID: %s)", instanceID), err, false, false)
	}

	jobExecutions, err := e.jobRepository.FindJobExecutionsByJobInstance(ctx, jobInstance)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobExecutions associated with JobInstance (ID: %s)", instanceID), err, false, false)
	}
	logger.Debugf("Retrieved %d JobExecutions associated with JobInstance (ID: %s).", len(jobExecutions), instanceID)
	return jobExecutions, nil
}

// GetLastJobExecution retrieves the latest JobExecution of a JobInstance.
func (e *SimpleJobExplorer) GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve the latest JobExecution of JobInstance (ID: %s)", instanceID), err, false, false)
	}
	return jobExecution, nil
}

// GetRunningJobExecutions returns the unfinished executions of jobName.
func (e *SimpleJobExplorer) GetRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	return e.jobRepository.FindRunningJobExecutions(ctx, jobName)
}

// GetJobInstance retrieves a JobInstance by its ID.
func (e *SimpleJobExplorer) GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error) {
	jobInstance, err := e.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobInstance (ID: %s)", instanceID), err, false, false)
	}
	return jobInstance, nil
}

// GetJobInstances returns the instances of jobName, newest first.
func (e *SimpleJobExplorer) GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	return e.jobRepository.FindJobInstancesByJobName(ctx, jobName)
}

// GetJobNames returns the names of all jobs with recorded instances.
func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	return e.jobRepository.GetJobNames(ctx)
}

// GetParameters retrieves the JobParameters of a JobExecution.
func (e *SimpleJobExplorer) GetParameters(ctx context.Context, executionID string) (model.JobParameters, error) {
	jobExecution, err := e.GetJobExecution(ctx, executionID)
	if err != nil {
		return model.JobParameters{}, err
	}
	return jobExecution.Parameters, nil
}
