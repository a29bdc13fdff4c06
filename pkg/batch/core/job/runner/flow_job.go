// Package runner assembles steps into a job graph and drives job executions through it.
package runner

import (
	"context"
	"errors"
	"fmt"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// FlowJob is a port.Job that runs the steps of a Flow, routing on each step's exit status.
type FlowJob struct {
	name        string
	flow        *Flow
	repo        repository.JobRepository
	listeners   []port.JobExecutionListener
	validator   port.JobParametersValidator
	incrementer port.JobParametersIncrementer
	restartable bool
	tracer      metrics.Tracer
}

// JobOption configures a FlowJob.
type JobOption func(*FlowJob)

// WithListeners registers job execution listeners, notified in registration order.
func WithListeners(listeners ...port.JobExecutionListener) JobOption {
	return func(j *FlowJob) {
		j.listeners = append(j.listeners, listeners...)
	}
}

// WithValidator sets the parameters validator checked before launch.
func WithValidator(v port.JobParametersValidator) JobOption {
	return func(j *FlowJob) {
		j.validator = v
	}
}

// WithIncrementer sets the incrementer used by launches that ask for the next parameters.
func WithIncrementer(inc port.JobParametersIncrementer) JobOption {
	return func(j *FlowJob) {
		j.incrementer = inc
	}
}

// PreventRestart makes FAILED and STOPPED instances of the job final.
func PreventRestart() JobOption {
	return func(j *FlowJob) {
		j.restartable = false
	}
}

// WithTracer sets the tracer that receives flow routing events and errors.
func WithTracer(t metrics.Tracer) JobOption {
	return func(j *FlowJob) {
		j.tracer = t
	}
}

// NewFlowJob creates the job flow.JobName running flow against repo.
func NewFlowJob(flow *Flow, repo repository.JobRepository, opts ...JobOption) *FlowJob {
	j := &FlowJob{
		name:        flow.JobName,
		flow:        flow,
		repo:        repo,
		restartable: true,
		tracer:      metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// JobName returns the job name.
func (j *FlowJob) JobName() string { return j.name }

// Incrementer returns the incrementer, or nil.
func (j *FlowJob) Incrementer() port.JobParametersIncrementer { return j.incrementer }

// IsRestartable reports whether failed or stopped instances may run again.
func (j *FlowJob) IsRestartable() bool { return j.restartable }

// Flow returns the graph of the job.
func (j *FlowJob) Flow() *Flow { return j.flow }

// ValidateParameters runs the validator, if any, and wraps its rejection in a
// *exception.ValidationError.
func (j *FlowJob) ValidateParameters(params model.JobParameters) error {
	if j.validator == nil {
		return nil
	}
	if err := j.validator.Validate(params); err != nil {
		var ve *exception.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return exception.NewValidationError(j.name, "invalid job parameters", err)
	}
	return nil
}

// Run executes the flow for jobExecution, which must be STARTED. On return the execution
// holds its terminal status; persisting it is left to the caller.
func (j *FlowJob) Run(ctx context.Context, jobExecution *model.JobExecution) error {
	var runErr error
	if err := j.beforeJob(ctx, jobExecution); err != nil {
		jobExecution.MarkAsFailed(err)
		runErr = err
	} else {
		runErr = j.walk(ctx, jobExecution)
	}
	j.afterJob(context.WithoutCancel(ctx), jobExecution)
	return runErr
}

// walk runs steps from the start element until a terminal transition or a step without
// a matching transition.
func (j *FlowJob) walk(ctx context.Context, je *model.JobExecution) error {
	def := j.flow.Definition
	current := def.StartElement

	for {
		if ctx.Err() != nil || je.Status == model.BatchStatusStopping {
			logger.Infof("Job '%s' stopped before step '%s'.", j.name, current)
			je.MarkAsStopped()
			return nil
		}

		step := j.flow.Steps[current]
		je.CurrentStepName = current

		status, exit, stepErr, err := j.runStep(ctx, je, step)
		if err != nil {
			j.tracer.RecordError(ctx, "flow", err)
			je.MarkAsFailed(err)
			return err
		}
		if status == model.BatchStatusStopped {
			je.MarkAsStopped()
			return nil
		}

		rule, ok := def.GetTransitionRule(current, exit)
		if !ok {
			logger.Debugf("Job '%s': no transition from '%s' on '%s'; ending with the step status.", j.name, current, exit)
			return j.finishWith(je, status, exit, stepErr)
		}
		j.tracer.RecordEvent(ctx, "flow.transition", map[string]interface{}{
			"from":       current,
			"exitStatus": string(exit),
			"transition": rule.Transition.String(),
		})

		switch {
		case rule.Transition.End:
			je.MarkAsCompleted(model.ExitStatusCompleted)
			return nil
		case rule.Transition.Fail:
			cause := stepErr
			if cause == nil {
				cause = fmt.Errorf("job '%s' failed by transition from '%s' on '%s'", j.name, current, rule.Transition.On)
			}
			je.MarkAsFailed(cause)
			return cause
		case rule.Transition.Stop:
			je.MarkAsStopped()
			return nil
		}
		logger.Debugf("Job '%s': '%s' exited with '%s', next step '%s'.", j.name, current, exit, rule.Transition.To)
		current = rule.Transition.To
	}
}

func (j *FlowJob) finishWith(je *model.JobExecution, status model.JobStatus, exit model.ExitStatus, stepErr error) error {
	switch status {
	case model.BatchStatusCompleted:
		je.MarkAsCompleted(exit)
		return nil
	case model.BatchStatusFailed:
		if stepErr == nil {
			stepErr = fmt.Errorf("step '%s' failed", je.CurrentStepName)
		}
		je.MarkAsFailed(stepErr)
		return stepErr
	default:
		je.MarkAsStopped()
		return nil
	}
}

// runStep executes step for je, or reuses the result of a previous execution of the instance
// when the step already COMPLETED there. err is set when the flow itself cannot go on; a
// failing step reports stepErr and lets routing decide.
func (j *FlowJob) runStep(ctx context.Context, je *model.JobExecution, step port.Step) (status model.JobStatus, exit model.ExitStatus, stepErr error, err error) {
	persistCtx := context.WithoutCancel(ctx)
	name := step.StepName()

	var previous *model.StepExecution
	if je.RestartCount > 0 {
		previous, err = j.repo.FindLastStepExecution(persistCtx, je.JobInstanceID, name)
		if err != nil && !errors.Is(err, repository.ErrStepExecutionNotFound) {
			return "", "", nil, err
		}
		err = nil
		if previous != nil && previous.JobExecutionID != je.ID && previous.Status == model.BatchStatusCompleted {
			logger.Infof("Job '%s': step '%s' already completed in a previous execution, skipping.", j.name, name)
			return previous.Status, previous.ExitStatus, nil, nil
		}
	}

	se := model.NewStepExecution(name, je)
	if previous != nil {
		se.ExecutionContext = previous.ExecutionContext.Copy()
	}
	je.AddStepExecution(se)
	if err := j.repo.SaveStepExecution(persistCtx, se); err != nil {
		return "", "", nil, err
	}

	stepErr = step.Execute(ctx, se)

	var repoErr *exception.RepositoryError
	if stepErr != nil && errors.As(stepErr, &repoErr) {
		return "", "", nil, stepErr
	}
	// The job context may have been changed by the step.
	if err := j.repo.UpdateJobExecution(persistCtx, je); err != nil {
		return "", "", nil, err
	}
	if stepErr != nil {
		logger.Warnf("Job '%s': step '%s' failed: %v", j.name, name, stepErr)
	}
	return se.Status, se.ExitStatus, stepErr, nil
}

func (j *FlowJob) beforeJob(ctx context.Context, je *model.JobExecution) error {
	for _, l := range j.listeners {
		if err := l.BeforeJob(ctx, je); err != nil {
			logger.Errorf("Job '%s': BeforeJob listener failed: %v", j.name, err)
			return err
		}
	}
	return nil
}

func (j *FlowJob) afterJob(ctx context.Context, je *model.JobExecution) {
	for _, l := range j.listeners {
		if err := l.AfterJob(ctx, je); err != nil {
			logger.Warnf("Job '%s': AfterJob listener failed: %v", j.name, err)
		}
	}
}

var _ port.Job = (*FlowJob)(nil)
