package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// SaveStepExecution inserts the StepExecution or overwrites the row with the same ID.
func (r *GormJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SaveStepExecution"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return err
	}
	entity := fromDomainStepExecution(stepExecution)
	if _, err := conn.ExecuteUpsert(ctx, entity, stepExecutionTable, []string{"id"}, stepExecutionUpdateColumns); err != nil {
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to save StepExecution (ID: %s)", stepExecution.ID), err)
	}
	return nil
}

// UpdateStepExecution writes stepExecution if its Version matches the stored one and the
// status change is allowed. On success Version is incremented.
func (r *GormJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "UpdateStepExecution"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return err
	}

	now := time.Now()
	err = conn.RunInTx(ctx, func(exec database.DBExecutor) error {
		stored, err := findStepExecution(ctx, exec, database.Query{Conditions: map[string]interface{}{"id": stepExecution.ID}, Limit: 1})
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("StepExecution with ID %s not found for update: %w", stepExecution.ID, repository.ErrStepExecutionNotFound)
		}
		if err := repository.CheckVersion(op, stepExecution.ID, stored.Version, stepExecution.Version); err != nil {
			return err
		}
		if err := repository.CheckStatusUpdate(op, stepExecution.ID, stored.Status, stepExecution.Status); err != nil {
			return err
		}

		entity := fromDomainStepExecution(stepExecution)
		entity.Version = stepExecution.Version + 1
		entity.LastUpdated = now.UTC()
		rows, err := exec.ExecuteUpdate(ctx, entity, tx.OperationUpdate, stepExecutionTable, map[string]interface{}{"version": stepExecution.Version})
		if err != nil {
			return err
		}
		if rows == 0 {
			return repository.CheckVersion(op, stepExecution.ID, stepExecution.Version+1, stepExecution.Version)
		}
		return nil
	})
	if err != nil {
		return wrapRepositoryError(op, "failed to update StepExecution (ID: "+stepExecution.ID+")", err)
	}
	stepExecution.Version++
	stepExecution.LastUpdated = now
	return nil
}

func (r *GormJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "FindStepExecutionByID"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	se, err := findStepExecution(ctx, conn, database.Query{Conditions: map[string]interface{}{"id": executionID}, Limit: 1})
	if err != nil {
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find StepExecution by ID: %s", executionID), err)
	}
	if se == nil {
		return nil, repository.ErrStepExecutionNotFound
	}
	return se, nil
}

// FindLastStepExecution returns the latest execution of stepName within the JobInstance.
func (r *GormJobRepository) FindLastStepExecution(ctx context.Context, jobInstanceID string, stepName string) (*model.StepExecution, error) {
	const op = "FindLastStepExecution"
	conn, err := r.getDBConnection(ctx, op)
	if err != nil {
		return nil, err
	}
	se, err := findStepExecution(ctx, conn, database.Query{
		Where:   "step_name = ? AND job_execution_id IN (SELECT id FROM " + jobExecutionTable + " WHERE job_instance_id = ?)",
		Args:    []interface{}{stepName, jobInstanceID},
		OrderBy: "start_time desc",
		Limit:   1,
	})
	if err != nil {
		return nil, exception.NewRepositoryError(op, "failed to find last StepExecution of "+stepName, err)
	}
	if se == nil {
		return nil, repository.ErrStepExecutionNotFound
	}
	return se, nil
}

func findStepExecution(ctx context.Context, exec database.DBExecutor, q database.Query) (*model.StepExecution, error) {
	var entities []StepExecutionEntity
	if err := exec.ExecuteQueryPage(ctx, &entities, q); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return toDomainStepExecution(&entities[0]), nil
}
