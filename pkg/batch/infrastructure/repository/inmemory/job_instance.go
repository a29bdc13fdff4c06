package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
)

// SaveJobInstance persists a new JobInstance.
// It returns an error if an instance with the same ID or the same (job name, parameters) exists.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveJobInstanceLocked(instance)
}

func (r *InMemoryJobRepository) saveJobInstanceLocked(instance *model.JobInstance) error {
	if _, exists := r.jobInstances[instance.ID]; exists {
		return fmt.Errorf("JobInstance with ID %s already exists", instance.ID)
	}
	key := instanceKey(instance.JobName, instance.ParametersHash)
	if _, exists := r.instanceIndex[key]; exists {
		return fmt.Errorf("JobInstance for job '%s' with parameters hash %s already exists", instance.JobName, instance.ParametersHash)
	}
	cp := *instance
	cp.Parameters = instance.Parameters.Copy()
	r.jobInstances[instance.ID] = &cp
	r.instanceIndex[key] = instance.ID
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.jobInstances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	return copyInstance(instance), nil
}

// FindJobInstanceByJobNameAndParameters finds a JobInstance by job name and the hash of params.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.instanceIndex[instanceKey(jobName, hash)]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	return copyInstance(r.jobInstances[id]), nil
}

// FindJobInstancesByJobName returns the instances of jobName, newest first.
func (r *InMemoryJobRepository) FindJobInstancesByJobName(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var instances []*model.JobInstance
	for _, instance := range r.jobInstances {
		if instance.JobName == jobName {
			instances = append(instances, copyInstance(instance))
		}
	}
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[j].CreateTime.Before(instances[i].CreateTime)
	})
	return instances, nil
}

// GetJobInstanceCount returns the number of instances of jobName.
func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, instance := range r.jobInstances {
		if instance.JobName == jobName {
			count++
		}
	}
	return count, nil
}

// GetJobNames returns the distinct job names, sorted.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, instance := range r.jobInstances {
		if _, ok := seen[instance.JobName]; !ok {
			seen[instance.JobName] = struct{}{}
			names = append(names, instance.JobName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func copyInstance(instance *model.JobInstance) *model.JobInstance {
	cp := *instance
	cp.Parameters = instance.Parameters.Copy()
	return &cp
}
