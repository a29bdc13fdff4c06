package step

import (
	"context"
	"errors"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// ErrStopped is returned by a step body that halted because its context was cancelled.
// The step ends STOPPED.
var ErrStopped = errors.New("step stopped")

// Body is the work of a step between its listeners.
type Body func(ctx context.Context, stepExecution *model.StepExecution) error

// Lifecycle drives a StepExecution through STARTED to a terminal status around a Body.
type Lifecycle struct {
	name  string
	stage string
	repo  repository.JobRepository
	opts  Options
}

// NewLifecycle creates the lifecycle of step name. Body errors that are not already a
// *exception.StepFailure are reported with stage.
func NewLifecycle(name, stage string, repo repository.JobRepository, opts Options) *Lifecycle {
	return &Lifecycle{name: name, stage: stage, repo: repo, opts: opts}
}

// Options returns the options the lifecycle was built with.
func (l *Lifecycle) Options() Options {
	return l.opts
}

// Run executes body for stepExecution:
//
//  1. the execution is marked STARTED and persisted;
//  2. BeforeStep listeners run; a failure skips body and fails the step;
//  3. body runs, unless ctx is already cancelled;
//  4. the terminal status is set (ErrStopped or cancellation give STOPPED);
//  5. AfterStep listeners run and may change the exit status; their errors are logged;
//  6. promoted keys are copied to the job context if the step COMPLETED;
//  7. the execution is persisted.
//
// The returned error is a *exception.StepFailure for a FAILED step and a
// *exception.RepositoryError when the execution could not be persisted.
func (l *Lifecycle) Run(ctx context.Context, stepExecution *model.StepExecution, body Body) error {
	ctx, endSpan := l.opts.Tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)
	// Records are written even when ctx was cancelled by a stop request.
	persistCtx := context.WithoutCancel(ctx)

	stepExecution.MarkAsStarted()
	if err := l.repo.UpdateStepExecution(persistCtx, stepExecution); err != nil {
		return err
	}
	l.opts.MetricRecorder.RecordStepStart(ctx, stepExecution)
	logger.Infof("Step '%s' started. (StepExecution ID: %s)", l.name, stepExecution.ID)

	var failure error
	if err := l.beforeStep(ctx, stepExecution); err != nil {
		failure = exception.NewStepFailure(l.name, "listener", err)
	} else if ctx.Err() != nil {
		failure = ErrStopped
	} else {
		failure = body(ctx, stepExecution)
	}

	switch {
	case failure == nil:
		stepExecution.MarkAsCompleted()
	case errors.Is(failure, ErrStopped) || errors.Is(failure, context.Canceled):
		logger.Infof("Step '%s' stopped.", l.name)
		stepExecution.MarkAsStopped()
		failure = nil
	default:
		var sf *exception.StepFailure
		if !errors.As(failure, &sf) {
			failure = exception.NewStepFailure(l.name, l.stage, failure)
		}
		l.opts.Tracer.RecordError(ctx, l.name, failure)
		stepExecution.MarkAsFailed(failure)
	}

	l.afterStep(persistCtx, stepExecution)

	if stepExecution.Status == model.BatchStatusCompleted && l.opts.Promotion != nil && stepExecution.JobExecution != nil {
		promoted := l.opts.Promotion.Apply(stepExecution.ExecutionContext, stepExecution.JobExecution.ExecutionContext)
		if len(promoted) > 0 {
			logger.Debugf("Step '%s' promoted %v to the job context.", l.name, promoted)
		}
	}

	if err := l.repo.UpdateStepExecution(persistCtx, stepExecution); err != nil {
		logger.Errorf("Step '%s': failed to persist final StepExecution: %v", l.name, err)
		if failure == nil {
			failure = err
		}
	}
	l.opts.MetricRecorder.RecordStepEnd(persistCtx, stepExecution)
	logger.Infof("Step '%s' finished. (Status: %s, ExitStatus: %s)", l.name, stepExecution.Status, stepExecution.ExitStatus)
	return failure
}

func (l *Lifecycle) beforeStep(ctx context.Context, stepExecution *model.StepExecution) error {
	for _, listener := range l.opts.StepListeners {
		if err := listener.BeforeStep(ctx, stepExecution); err != nil {
			logger.Errorf("Step '%s': BeforeStep listener failed: %v", l.name, err)
			return err
		}
	}
	return nil
}

func (l *Lifecycle) afterStep(ctx context.Context, stepExecution *model.StepExecution) {
	for _, listener := range l.opts.StepListeners {
		if err := listener.AfterStep(ctx, stepExecution); err != nil {
			logger.Warnf("Step '%s': AfterStep listener failed: %v", l.name, err)
		}
	}
}
