package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

const latestFirst = "restart_count desc, create_time desc"

// errInstanceRace reports that another process inserted the same JobInstance first.
var errInstanceRace = errors.New("job instance inserted concurrently")

// CreateJobExecution finds or creates the JobInstance of (jobName, params) and opens a new
// JobExecution for it inside one transaction.
func (r *GormJobRepository) CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	const op = "CreateJobExecution"
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	unlock := r.createLocks.Lock(jobName + "\x00" + hash)
	defer unlock()

	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}

	// A concurrent insert of the instance aborts the transaction; the second attempt finds it.
	for attempt := 0; ; attempt++ {
		var created *model.JobExecution
		err = conn.RunInTx(ctx, func(exec database.DBExecutor) error {
			je, err := createJobExecution(ctx, conn, exec, jobName, params, hash)
			created = je
			return err
		})
		if errors.Is(err, errInstanceRace) && attempt == 0 {
			logger.Debugf("JobInstance of '%s' was created concurrently; retrying.", jobName)
			continue
		}
		if err != nil {
			return nil, wrapRepositoryError(op, fmt.Sprintf("failed to create JobExecution of '%s'", jobName), err)
		}
		return created, nil
	}
}

func createJobExecution(ctx context.Context, conn database.DBConnection, exec database.DBExecutor, jobName string, params model.JobParameters, hash string) (*model.JobExecution, error) {
	instance, err := findJobInstance(ctx, exec, map[string]interface{}{"job_name": jobName, "parameters_hash": hash})
	if err != nil {
		return nil, err
	}
	if instance == nil {
		instance, err = model.NewJobInstance(jobName, params)
		if err != nil {
			return nil, err
		}
		if _, err := exec.ExecuteUpdate(ctx, fromDomainJobInstance(instance), tx.OperationCreate, jobInstanceTable, nil); err != nil {
			if conn.IsUniqueViolation(err) {
				return nil, errInstanceRace
			}
			return nil, err
		}
	}

	last, err := findJobExecution(ctx, exec, database.Query{
		Conditions: map[string]interface{}{"job_instance_id": instance.ID},
		OrderBy:    latestFirst,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if err := repository.CheckLaunchable(jobName, instance, last); err != nil {
		return nil, err
	}

	je := repository.NextExecution(instance, last)
	if _, err := exec.ExecuteUpdate(ctx, fromDomainJobExecution(je), tx.OperationCreate, jobExecutionTable, nil); err != nil {
		return nil, err
	}
	return je, nil
}

func (r *GormJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SaveJobExecution"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return err
	}
	if _, err := conn.ExecuteUpdate(ctx, fromDomainJobExecution(jobExecution), tx.OperationCreate, jobExecutionTable, nil); err != nil {
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", jobExecution.ID), err)
	}
	return nil
}

// UpdateJobExecution writes jobExecution if its Version matches the stored one and the
// status change is allowed. On success Version is incremented.
func (r *GormJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "UpdateJobExecution"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return err
	}

	now := time.Now()
	err = conn.RunInTx(ctx, func(exec database.DBExecutor) error {
		stored, err := findJobExecution(ctx, exec, database.Query{Conditions: map[string]interface{}{"id": jobExecution.ID}, Limit: 1})
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("JobExecution with ID %s not found for update: %w", jobExecution.ID, repository.ErrJobExecutionNotFound)
		}
		if err := repository.CheckVersion(op, jobExecution.ID, stored.Version, jobExecution.Version); err != nil {
			return err
		}
		if err := repository.CheckStatusUpdate(op, jobExecution.ID, stored.Status, jobExecution.Status); err != nil {
			return err
		}

		entity := fromDomainJobExecution(jobExecution)
		entity.Version = jobExecution.Version + 1
		entity.LastUpdated = now.UTC()
		rows, err := exec.ExecuteUpdate(ctx, entity, tx.OperationUpdate, jobExecutionTable, map[string]interface{}{"version": jobExecution.Version})
		if err != nil {
			return err
		}
		if rows == 0 {
			return repository.CheckVersion(op, jobExecution.ID, jobExecution.Version+1, jobExecution.Version)
		}
		return nil
	})
	if err != nil {
		return wrapRepositoryError(op, "failed to update JobExecution (ID: "+jobExecution.ID+")", err)
	}
	jobExecution.Version++
	jobExecution.LastUpdated = now
	return nil
}

// FindJobExecutionByID returns the execution with its step executions in the order they ran.
func (r *GormJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	const op = "FindJobExecutionByID"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	je, err := findJobExecution(ctx, conn, database.Query{Conditions: map[string]interface{}{"id": executionID}, Limit: 1})
	if err != nil {
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find JobExecution by ID: %s", executionID), err)
	}
	if je == nil {
		return nil, repository.ErrJobExecutionNotFound
	}
	if err := r.loadStepExecutions(ctx, conn, je); err != nil {
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to load StepExecutions of JobExecution %s", executionID), err)
	}
	return je, nil
}

// FindLatestJobExecution returns the most recent execution of the JobInstance.
func (r *GormJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	const op = "FindLatestJobExecution"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	je, err := findJobExecution(ctx, conn, database.Query{
		Conditions: map[string]interface{}{"job_instance_id": jobInstanceID},
		OrderBy:    latestFirst,
		Limit:      1,
	})
	if err != nil {
		return nil, exception.NewRepositoryError(op, "failed to find latest JobExecution", err)
	}
	if je == nil {
		return nil, repository.ErrJobExecutionNotFound
	}
	if err := r.loadStepExecutions(ctx, conn, je); err != nil {
		return nil, exception.NewRepositoryError(op, "failed to load StepExecutions", err)
	}
	return je, nil
}

// FindJobExecutionsByJobInstance returns the executions of jobInstance, latest first,
// without their step executions.
func (r *GormJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	const op = "FindJobExecutionsByJobInstance"
	return r.findJobExecutions(ctx, op, database.Query{
		Conditions: map[string]interface{}{"job_instance_id": jobInstance.ID},
		OrderBy:    latestFirst,
	})
}

// FindRunningJobExecutions returns the unfinished executions of jobName, oldest first.
func (r *GormJobRepository) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	const op = "FindRunningJobExecutions"
	return r.findJobExecutions(ctx, op, database.Query{
		Where:   "job_name = ? AND status IN ?",
		Args:    []interface{}{jobName, runningStatuses()},
		OrderBy: "create_time asc",
	})
}

func runningStatuses() []string {
	return []string{
		string(model.BatchStatusStarting),
		string(model.BatchStatusStarted),
		string(model.BatchStatusStopping),
	}
}

func (r *GormJobRepository) findJobExecutions(ctx context.Context, op string, q database.Query) ([]*model.JobExecution, error) {
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	var entities []JobExecutionEntity
	if err := conn.ExecuteQueryPage(ctx, &entities, q); err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.JobExecution{}, nil
		}
		return nil, exception.NewRepositoryError(op, "failed to find JobExecutions", err)
	}
	executions := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		executions = append(executions, toDomainJobExecution(&entities[i]))
	}
	return executions, nil
}

func findJobExecution(ctx context.Context, exec database.DBExecutor, q database.Query) (*model.JobExecution, error) {
	var entities []JobExecutionEntity
	if err := exec.ExecuteQueryPage(ctx, &entities, q); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return toDomainJobExecution(&entities[0]), nil
}

func (r *GormJobRepository) loadStepExecutions(ctx context.Context, exec database.DBExecutor, je *model.JobExecution) error {
	var entities []StepExecutionEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_execution_id": je.ID}, "start_time asc, id asc", 0); err != nil {
		return err
	}
	for i := range entities {
		se := toDomainStepExecution(&entities[i])
		se.JobExecution = je
		je.StepExecutions = append(je.StepExecutions, se)
	}
	return nil
}

// wrapRepositoryError keeps typed batch errors and wraps everything else.
func wrapRepositoryError(op, message string, err error) error {
	if exception.IsBatchError(err) || errors.Is(err, repository.ErrJobExecutionNotFound) || errors.Is(err, repository.ErrStepExecutionNotFound) {
		return err
	}
	return exception.NewRepositoryError(op, message, err)
}
