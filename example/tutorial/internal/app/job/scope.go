package job

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/tasklet"
)

// scopedStep builds a fresh delegate for every StepExecution. Readers and writers keep
// their position per execution and can be configured from the job parameters.
type scopedStep struct {
	name  string
	repo  repository.JobRepository
	build func(params model.JobParameters) (port.Step, error)
}

func newScopedStep(name string, repo repository.JobRepository, build func(params model.JobParameters) (port.Step, error)) *scopedStep {
	return &scopedStep{name: name, repo: repo, build: build}
}

func (s *scopedStep) StepName() string {
	return s.name
}

// Execute builds the delegate and runs it. A build failure fails the step like any
// other step error.
func (s *scopedStep) Execute(ctx context.Context, stepExecution *model.StepExecution) error {
	params := model.NewJobParameters()
	if stepExecution.JobExecution != nil {
		params = stepExecution.JobExecution.Parameters
	}
	delegate, err := s.build(params)
	if err != nil {
		delegate = tasklet.NewTaskletStep(s.name, port.TaskletFunc(func(context.Context, *model.StepExecution) (model.RepeatStatus, error) {
			return model.RepeatStatusFinished, err
		}), s.repo)
	}
	return delegate.Execute(ctx, stepExecution)
}

var _ port.Step = (*scopedStep)(nil)
