// Package tasklet implements the tasklet step: a single unit of work invoked until it
// reports completion.
package tasklet

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// TaskletStep runs a port.Tasklet inside the step lifecycle.
type TaskletStep struct {
	name      string
	tasklet   port.Tasklet
	repo      repository.JobRepository
	lifecycle *step.Lifecycle
}

// Verify that TaskletStep implements the port.Step interface.
var _ port.Step = (*TaskletStep)(nil)

// NewTaskletStep creates a TaskletStep named name.
func NewTaskletStep(name string, tasklet port.Tasklet, repo repository.JobRepository, opts ...step.Option) *TaskletStep {
	return &TaskletStep{
		name:      name,
		tasklet:   tasklet,
		repo:      repo,
		lifecycle: step.NewLifecycle(name, "tasklet", repo, step.NewOptions(opts...)),
	}
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.name
}

// Execute runs the tasklet until it returns model.RepeatStatusFinished, an error, or the
// context is cancelled between two invocations.
func (s *TaskletStep) Execute(ctx context.Context, stepExecution *model.StepExecution) error {
	return s.lifecycle.Run(ctx, stepExecution, s.run)
}

func (s *TaskletStep) run(ctx context.Context, stepExecution *model.StepExecution) error {
	for iteration := 1; ; iteration++ {
		status, err := s.tasklet.Execute(ctx, stepExecution)
		if err != nil {
			return exception.NewStepFailure(s.name, "tasklet", err)
		}
		if status != model.RepeatStatusContinuable {
			return nil
		}

		// Each CONTINUABLE iteration is a checkpoint.
		stepExecution.CommitCount++
		if err := s.repo.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); err != nil {
			return exception.NewStepFailure(s.name, "commit", err)
		}
		logger.Debugf("TaskletStep '%s': iteration %d is continuable.", s.name, iteration)
		if ctx.Err() != nil {
			return step.ErrStopped
		}
	}
}
