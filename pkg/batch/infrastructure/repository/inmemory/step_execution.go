package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
)

// SaveStepExecution stores the StepExecution, replacing the stored copy with the same ID.
func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobExecutions[stepExecution.JobExecutionID]; !ok {
		return fmt.Errorf("StepExecution %s refers to unknown JobExecution %s: %w",
			stepExecution.ID, stepExecution.JobExecutionID, repository.ErrJobExecutionNotFound)
	}
	if _, exists := r.stepExecutions[stepExecution.ID]; !exists {
		r.stepOrder[stepExecution.JobExecutionID] = append(r.stepOrder[stepExecution.JobExecutionID], stepExecution.ID)
	}
	r.stepExecutions[stepExecution.ID] = stepExecution.Snapshot()
	return nil
}

// UpdateStepExecution updates an existing StepExecution.
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "UpdateStepExecution"
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.stepExecutions[stepExecution.ID]
	if !exists {
		return fmt.Errorf("StepExecution with ID %s not found for update: %w", stepExecution.ID, repository.ErrStepExecutionNotFound)
	}
	if err := repository.CheckVersion(op, stepExecution.ID, stored.Version, stepExecution.Version); err != nil {
		return err
	}
	if err := repository.CheckStatusUpdate(op, stepExecution.ID, stored.Status, stepExecution.Status); err != nil {
		return err
	}
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()
	r.stepExecutions[stepExecution.ID] = stepExecution.Snapshot()
	return nil
}

// FindStepExecutionByID finds a StepExecution by its ID.
func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stepExecution, ok := r.stepExecutions[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	return stepExecution.Snapshot(), nil
}

// FindLastStepExecution returns the latest execution of stepName within the JobInstance.
func (r *InMemoryJobRepository) FindLastStepExecution(ctx context.Context, jobInstanceID string, stepName string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, je := range r.executionsOfLocked(jobInstanceID) {
		ids := r.stepOrder[je.ID]
		for i := len(ids) - 1; i >= 0; i-- {
			if se := r.stepExecutions[ids[i]]; se.StepName == stepName {
				return se.Snapshot(), nil
			}
		}
	}
	return nil, repository.ErrStepExecutionNotFound
}
