package sql

import (
	"context"
	"fmt"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

func (r *GormJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	const op = "SaveJobInstance"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return err
	}
	if _, err := conn.ExecuteUpdate(ctx, fromDomainJobInstance(instance), tx.OperationCreate, jobInstanceTable, nil); err != nil {
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to save JobInstance (ID: %s)", instance.ID), err)
	}
	return nil
}

func (r *GormJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	const op = "FindJobInstanceByID"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	instance, err := findJobInstance(ctx, conn, map[string]interface{}{"id": id})
	if err != nil {
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find JobInstance by ID: %s", id), err)
	}
	if instance == nil {
		return nil, repository.ErrJobInstanceNotFound
	}
	return instance, nil
}

func (r *GormJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "FindJobInstanceByJobNameAndParameters"
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	instance, err := findJobInstance(ctx, conn, map[string]interface{}{"job_name": jobName, "parameters_hash": hash})
	if err != nil {
		return nil, exception.NewRepositoryError(op, "failed to find JobInstance", err)
	}
	if instance == nil {
		return nil, repository.ErrJobInstanceNotFound
	}
	return instance, nil
}

// FindJobInstancesByJobName returns the instances of jobName, newest first.
func (r *GormJobRepository) FindJobInstancesByJobName(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	const op = "FindJobInstancesByJobName"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	var entities []JobInstanceEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_name": jobName}, "create_time desc", 0); err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.JobInstance{}, nil
		}
		return nil, exception.NewRepositoryError(op, "failed to find JobInstances by job name", err)
	}
	instances := make([]*model.JobInstance, 0, len(entities))
	for i := range entities {
		instances = append(instances, toDomainJobInstance(&entities[i]))
	}
	return instances, nil
}

func (r *GormJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	const op = "GetJobInstanceCount"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return 0, err
	}
	count, err := conn.Count(ctx, &JobInstanceEntity{}, map[string]interface{}{"job_name": jobName})
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return 0, nil
		}
		return 0, exception.NewRepositoryError(op, "failed to count JobInstances", err)
	}
	return int(count), nil
}

// GetJobNames returns the distinct job names with at least one instance, sorted.
func (r *GormJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	const op = "GetJobNames"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := conn.Pluck(ctx, &JobInstanceEntity{}, "job_name", &names, nil); err != nil {
		if conn.IsTableNotExistError(err) {
			return []string{}, nil
		}
		return nil, exception.NewRepositoryError(op, "failed to pluck job names", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// findJobInstance returns the instance matching conditions, or nil.
func findJobInstance(ctx context.Context, exec database.DBExecutor, conditions map[string]interface{}) (*model.JobInstance, error) {
	var entities []JobInstanceEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entities, conditions, "", 1); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return toDomainJobInstance(&entities[0]), nil
}
