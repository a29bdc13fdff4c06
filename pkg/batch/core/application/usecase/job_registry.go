package usecase

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
)

// ErrNoSuchJob is returned when a job name is not registered.
var ErrNoSuchJob = errors.New("no such job")

// JobRegistry maps job names to job definitions.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]port.Job
}

// NewJobRegistry creates a registry holding jobs. Jobs sharing a name are rejected.
func NewJobRegistry(jobs ...port.Job) (*JobRegistry, error) {
	r := &JobRegistry{jobs: make(map[string]port.Job)}
	for _, j := range jobs {
		if err := r.Register(j); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds job.
func (r *JobRegistry) Register(job port.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.JobName()]; ok {
		return fmt.Errorf("job '%s' is already registered", job.JobName())
	}
	r.jobs[job.JobName()] = job
	return nil
}

// Get returns the job registered as name.
func (r *JobRegistry) Get(name string) (port.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNoSuchJob, name)
	}
	return job, nil
}

// Names returns the registered job names in sorted order.
func (r *JobRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
