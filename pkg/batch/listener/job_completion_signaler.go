package listener

import (
	"context"
	"sync"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// JobCompletionSignaler is a JobExecutionListener that closes a channel
// when a job completes, signaling its completion to external components.
//
// The channel is closed once, after the first execution that finishes. Final holds a
// snapshot of that execution.
type JobCompletionSignaler struct {
	done  chan struct{}
	once  sync.Once
	mu    sync.Mutex
	final *model.JobExecution
}

// NewJobCompletionSignaler creates a new instance of JobCompletionSignaler.
func NewJobCompletionSignaler() *JobCompletionSignaler {
	return &JobCompletionSignaler{done: make(chan struct{})}
}

// Done returns the channel closed after the job finished.
func (l *JobCompletionSignaler) Done() <-chan struct{} {
	return l.done
}

// Final returns the snapshot of the finished execution, or nil before Done is closed.
func (l *JobCompletionSignaler) Final() *model.JobExecution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.final
}

// BeforeJob is part of the JobExecutionListener interface but does nothing in this implementation.
func (l *JobCompletionSignaler) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) error {
	return nil
}

// AfterJob closes the done channel when the job completes.
func (l *JobCompletionSignaler) AfterJob(ctx context.Context, jobExecution *model.JobExecution) error {
	l.once.Do(func() {
		logger.Infof("JobCompletionSignaler: Job '%s' (ID: %s) finished. Closing done channel.", jobExecution.JobName, jobExecution.ID)
		l.mu.Lock()
		l.final = jobExecution.Snapshot()
		l.mu.Unlock()
		close(l.done)
	})
	return nil
}

// Verify that JobCompletionSignaler implements the port.JobExecutionListener interface.
var _ port.JobExecutionListener = (*JobCompletionSignaler)(nil)
