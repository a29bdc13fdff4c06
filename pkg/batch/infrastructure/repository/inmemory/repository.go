// Package inmemory provides an in-memory implementation of the JobRepository interface.
// It stores all job-related data in maps within memory, suitable for testing and
// scenarios where persistence is not required.
package inmemory

import (
	"sync"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/keylock"
)

// InMemoryJobRepository is an in-memory implementation of the JobRepository interface.
// Records are stored as snapshots and handed out as copies.
type InMemoryJobRepository struct {
	jobInstances   map[string]*model.JobInstance
	instanceIndex  map[string]string // jobName + hash -> instance ID
	jobExecutions  map[string]*model.JobExecution
	stepExecutions map[string]*model.StepExecution
	stepOrder      map[string][]string // job execution ID -> step execution IDs in run order
	mu             sync.RWMutex

	createLocks keylock.KeyLock
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates and initializes a new instance of InMemoryJobRepository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		instanceIndex:  make(map[string]string),
		jobExecutions:  make(map[string]*model.JobExecution),
		stepExecutions: make(map[string]*model.StepExecution),
		stepOrder:      make(map[string][]string),
	}
}

func instanceKey(jobName, hash string) string {
	return jobName + "\x00" + hash
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method always returns nil.
func (r *InMemoryJobRepository) Close() error {
	return nil
}
