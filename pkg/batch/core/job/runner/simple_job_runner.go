package runner

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// JobRunner drives a created JobExecution to a terminal status.
type JobRunner interface {
	Run(ctx context.Context, job port.Job, jobExecution *model.JobExecution) error
}

// SimpleJobRunner marks the execution STARTED, runs the job in the calling goroutine and
// persists the final state.
type SimpleJobRunner struct {
	jobRepository  repository.JobRepository
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// NewSimpleJobRunner creates a SimpleJobRunner.
func NewSimpleJobRunner(repo repository.JobRepository, recorder metrics.MetricRecorder, tracer metrics.Tracer) *SimpleJobRunner {
	return &SimpleJobRunner{jobRepository: repo, metricRecorder: recorder, tracer: tracer}
}

// Run executes job for jobExecution.
//
// If the STARTED state cannot be persisted the execution is left STARTING and the
// repository error is returned. Otherwise the error that ended the job is returned; the
// execution itself always holds the outcome.
func (r *SimpleJobRunner) Run(ctx context.Context, job port.Job, jobExecution *model.JobExecution) error {
	ctx, endSpan := r.tracer.StartJobSpan(ctx, jobExecution)
	defer endSpan()
	persistCtx := context.WithoutCancel(ctx)

	jobExecution.MarkAsStarted()
	if err := r.jobRepository.UpdateJobExecution(persistCtx, jobExecution); err != nil {
		logger.Errorf("JobRunner: failed to update JobExecution (ID: %s) status to STARTED: %v", jobExecution.ID, err)
		jobExecution.Status = model.BatchStatusStarting
		jobExecution.StartTime = nil
		return err
	}
	r.metricRecorder.RecordJobStart(ctx, jobExecution)
	logger.Infof("Job '%s' started. (JobExecution ID: %s, Parameters: %s)", job.JobName(), jobExecution.ID, jobExecution.Parameters)

	err := job.Run(ctx, jobExecution)
	if !jobExecution.Status.IsFinished() {
		if err != nil {
			jobExecution.MarkAsFailed(err)
		} else {
			jobExecution.MarkAsCompleted("")
		}
	}
	if err != nil {
		r.tracer.RecordError(ctx, "job", err)
	}

	if updateErr := r.jobRepository.UpdateJobExecution(persistCtx, jobExecution); updateErr != nil {
		logger.Errorf("JobRunner: failed to update final JobExecution (ID: %s) state: %v", jobExecution.ID, updateErr)
		if err == nil {
			err = updateErr
		}
	}
	r.metricRecorder.RecordJobEnd(persistCtx, jobExecution)
	logger.Infof("Job '%s' finished. (Status: %s, ExitStatus: %s, Duration: %s)",
		job.JobName(), jobExecution.Status, jobExecution.ExitStatus, jobExecution.Duration())
	return err
}

var _ JobRunner = (*SimpleJobRunner)(nil)
