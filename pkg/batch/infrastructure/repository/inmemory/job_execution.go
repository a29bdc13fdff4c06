package inmemory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
)

// CreateJobExecution finds or creates the JobInstance of (jobName, params) and opens a new
// JobExecution for it. Calls for the same job name and parameters are serialized.
func (r *InMemoryJobRepository) CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	unlock := r.createLocks.Lock(instanceKey(jobName, hash))
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	var instance *model.JobInstance
	if id, ok := r.instanceIndex[instanceKey(jobName, hash)]; ok {
		instance = r.jobInstances[id]
	} else {
		instance, err = model.NewJobInstance(jobName, params)
		if err != nil {
			return nil, err
		}
		if err := r.saveJobInstanceLocked(instance); err != nil {
			return nil, err
		}
	}

	last := r.latestExecutionLocked(instance.ID)
	if err := repository.CheckLaunchable(jobName, instance, last); err != nil {
		return nil, err
	}
	je := repository.NextExecution(instance, last)
	if err := r.saveJobExecutionLocked(je); err != nil {
		return nil, err
	}
	return je, nil
}

// SaveJobExecution persists a new JobExecution.
// It returns an error if a JobExecution with the same ID already exists.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveJobExecutionLocked(jobExecution)
}

func (r *InMemoryJobRepository) saveJobExecutionLocked(jobExecution *model.JobExecution) error {
	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return fmt.Errorf("JobExecution with ID %s already exists", jobExecution.ID)
	}
	r.jobExecutions[jobExecution.ID] = detach(jobExecution)
	return nil
}

// UpdateJobExecution updates an existing JobExecution.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "UpdateJobExecution"
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.jobExecutions[jobExecution.ID]
	if !exists {
		return fmt.Errorf("JobExecution with ID %s not found for update: %w", jobExecution.ID, repository.ErrJobExecutionNotFound)
	}
	if err := repository.CheckVersion(op, jobExecution.ID, stored.Version, jobExecution.Version); err != nil {
		return err
	}
	if err := repository.CheckStatusUpdate(op, jobExecution.ID, stored.Status, jobExecution.Status); err != nil {
		return err
	}
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()
	r.jobExecutions[jobExecution.ID] = detach(jobExecution)
	return nil
}

// FindJobExecutionByID finds a JobExecution by its ID.
// It also loads and associates all related StepExecutions with the JobExecution object.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobExecution, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepsLocked(jobExecution), nil
}

// FindLatestJobExecution returns the most recent execution of the JobInstance.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := r.latestExecutionLocked(jobInstanceID)
	if latest == nil {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepsLocked(latest), nil
}

// FindJobExecutionsByJobInstance finds all JobExecutions associated with the specified
// JobInstance, latest first. StepExecutions are not loaded.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := r.executionsOfLocked(jobInstance.ID)
	result := make([]*model.JobExecution, 0, len(executions))
	for _, je := range executions {
		result = append(result, je.Snapshot())
	}
	return result, nil
}

// FindRunningJobExecutions returns the unfinished executions of jobName.
func (r *InMemoryJobRepository) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var running []*model.JobExecution
	for _, je := range r.jobExecutions {
		if je.JobName == jobName && je.Status.IsRunning() {
			running = append(running, je.Snapshot())
		}
	}
	sort.SliceStable(running, func(i, j int) bool {
		return running[i].CreateTime.Before(running[j].CreateTime)
	})
	return running, nil
}

// executionsOfLocked returns the stored executions of an instance, latest first.
func (r *InMemoryJobRepository) executionsOfLocked(instanceID string) []*model.JobExecution {
	var executions []*model.JobExecution
	for _, je := range r.jobExecutions {
		if je.JobInstanceID == instanceID {
			executions = append(executions, je)
		}
	}
	sort.SliceStable(executions, func(i, j int) bool {
		if executions[i].RestartCount != executions[j].RestartCount {
			return executions[i].RestartCount > executions[j].RestartCount
		}
		return executions[j].CreateTime.Before(executions[i].CreateTime)
	})
	return executions
}

func (r *InMemoryJobRepository) latestExecutionLocked(instanceID string) *model.JobExecution {
	executions := r.executionsOfLocked(instanceID)
	if len(executions) == 0 {
		return nil
	}
	return executions[0]
}

func (r *InMemoryJobRepository) withStepsLocked(stored *model.JobExecution) *model.JobExecution {
	je := stored.Snapshot()
	je.StepExecutions = make([]*model.StepExecution, 0, len(r.stepOrder[je.ID]))
	for _, sid := range r.stepOrder[je.ID] {
		se := r.stepExecutions[sid].Snapshot()
		se.JobExecution = je
		je.StepExecutions = append(je.StepExecutions, se)
	}
	return je
}

// detach copies jobExecution without its StepExecutions, which are stored separately.
func detach(jobExecution *model.JobExecution) *model.JobExecution {
	steps := jobExecution.StepExecutions
	jobExecution.StepExecutions = nil
	cp := jobExecution.Snapshot()
	jobExecution.StepExecutions = steps
	return cp
}
