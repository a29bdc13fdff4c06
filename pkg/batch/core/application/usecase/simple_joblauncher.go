package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// Reasons reported to MetricRecorder.RecordLaunchRejected.
const (
	RejectedInvalidParameters = "invalid_parameters"
	RejectedAlreadyRunning    = "already_running"
	RejectedDuplicate         = "duplicate"
	RejectedNotRestartable    = "not_restartable"
)

var (
	// ErrJobNotRunning is returned by Stop for an execution this launcher is not running.
	ErrJobNotRunning = errors.New("job execution is not running in this process")
	// ErrJobNotRestartable is wrapped by the error rejecting a relaunch of a FAILED or
	// STOPPED instance of a job built with runner.PreventRestart.
	ErrJobNotRestartable = errors.New("job is not restartable")
)

// LaunchOption configures a single launch.
type LaunchOption func(*launchOptions)

type launchOptions struct {
	exclusive     bool
	skipIncrement bool
}

// Exclusive rejects the launch with *exception.JobExecutionAlreadyRunningError while any
// execution of the same job name is running, whatever its parameters.
func Exclusive() LaunchOption {
	return func(o *launchOptions) { o.exclusive = true }
}

// WithoutIncrement launches with params as given, bypassing the job's incrementer.
// Restarts use it to reach the original JobInstance.
func WithoutIncrement() LaunchOption {
	return func(o *launchOptions) { o.skipIncrement = true }
}

type activeExecution struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// SimpleJobLauncher runs each launched job on its own goroutine.
type SimpleJobLauncher struct {
	jobRepository  repository.JobRepository
	registry       *JobRegistry
	jobRunner      runner.JobRunner
	metricRecorder metrics.MetricRecorder
	pollInterval   time.Duration

	mu     sync.Mutex
	active map[string]*activeExecution
	// exclusive launches of one job name are serialized between the running check and
	// the creation of the execution.
	nameLocks map[string]*sync.Mutex
	wg        sync.WaitGroup
}

// NewSimpleJobLauncher creates a SimpleJobLauncher.
func NewSimpleJobLauncher(
	repo repository.JobRepository,
	registry *JobRegistry,
	jobRunner runner.JobRunner,
	recorder metrics.MetricRecorder,
) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository:  repo,
		registry:       registry,
		jobRunner:      jobRunner,
		metricRecorder: recorder,
		pollInterval:   500 * time.Millisecond,
		active:         make(map[string]*activeExecution),
		nameLocks:      make(map[string]*sync.Mutex),
	}
}

// Registry returns the job registry of the launcher.
func (l *SimpleJobLauncher) Registry() *JobRegistry {
	return l.registry
}

// Launch implements JobLauncher.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters, opts ...LaunchOption) (*model.JobExecution, error) {
	var o launchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if params.Params == nil {
		params = model.NewJobParameters()
	}

	job, err := l.registry.Get(jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_launcher", fmt.Sprintf("cannot launch job '%s'", jobName), err, false, false)
	}

	if inc := job.Incrementer(); inc != nil && !o.skipIncrement {
		params, err = l.nextParameters(ctx, jobName, inc, params)
		if err != nil {
			return nil, err
		}
	}
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, params)

	if err := job.ValidateParameters(params); err != nil {
		logger.Errorf("Job '%s': JobParameters validation failed: %v", jobName, err)
		l.metricRecorder.RecordLaunchRejected(ctx, jobName, RejectedInvalidParameters)
		return nil, err
	}

	jobExecution, err := l.createExecution(ctx, job, params, o)
	if err != nil {
		l.recordRejection(ctx, jobName, err)
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	run := &activeExecution{cancel: cancel, done: make(chan struct{})}
	l.mu.Lock()
	l.active[jobExecution.ID] = run
	l.mu.Unlock()
	handle := jobExecution.Snapshot()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			cancel()
			l.mu.Lock()
			delete(l.active, jobExecution.ID)
			l.mu.Unlock()
			close(run.done)
		}()
		if err := l.jobRunner.Run(jobCtx, job, jobExecution); err != nil {
			logger.Debugf("Job '%s' (Execution ID: %s) ended with: %v", jobName, jobExecution.ID, err)
		}
	}()

	logger.Infof("Job '%s' launched. (Execution ID: %s, Job Instance ID: %s, Restart Count: %d)",
		jobName, handle.ID, handle.JobInstanceID, handle.RestartCount)
	return handle, nil
}

func (l *SimpleJobLauncher) createExecution(ctx context.Context, job port.Job, params model.JobParameters, o launchOptions) (*model.JobExecution, error) {
	jobName := job.JobName()
	if o.exclusive {
		lock := l.nameLock(jobName)
		lock.Lock()
		defer lock.Unlock()

		running, err := l.jobRepository.FindRunningJobExecutions(ctx, jobName)
		if err != nil {
			return nil, err
		}
		if len(running) > 0 {
			return nil, exception.NewJobExecutionAlreadyRunningError(jobName, running[0].ID)
		}
	}

	if !job.IsRestartable() {
		if err := l.checkNotRestart(ctx, jobName, params); err != nil {
			return nil, err
		}
	}
	return l.jobRepository.CreateJobExecution(ctx, jobName, params)
}

// checkNotRestart rejects relaunching a FAILED or STOPPED instance of a job that does not
// allow restarts.
func (l *SimpleJobLauncher) checkNotRestart(ctx context.Context, jobName string, params model.JobParameters) error {
	instance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if errors.Is(err, repository.ErrJobInstanceNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	last, err := l.jobRepository.FindLatestJobExecution(ctx, instance.ID)
	if errors.Is(err, repository.ErrJobExecutionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if last.Status.IsRestartable() {
		return exception.NewBatchError("job_launcher",
			fmt.Sprintf("job '%s' instance %s ended %s", jobName, instance.ID, last.Status), ErrJobNotRestartable, false, false)
	}
	return nil
}

// nextParameters applies inc to the parameters of the latest instance of the job and
// overlays params on the result.
func (l *SimpleJobLauncher) nextParameters(ctx context.Context, jobName string, inc port.JobParametersIncrementer, params model.JobParameters) (model.JobParameters, error) {
	base := model.NewJobParameters()
	instances, err := l.jobRepository.FindJobInstancesByJobName(ctx, jobName)
	if err != nil && !errors.Is(err, repository.ErrJobInstanceNotFound) {
		return model.JobParameters{}, err
	}
	if len(instances) > 0 {
		base = instances[0].Parameters.Copy()
	}
	next := inc.GetNext(base)
	for key, value := range params.Params {
		next.Params[key] = value
	}
	return next, nil
}

func (l *SimpleJobLauncher) nameLock(jobName string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.nameLocks[jobName]
	if !ok {
		lock = &sync.Mutex{}
		l.nameLocks[jobName] = lock
	}
	return lock
}

func (l *SimpleJobLauncher) recordRejection(ctx context.Context, jobName string, err error) {
	var running *exception.JobExecutionAlreadyRunningError
	var duplicate *exception.DuplicateExecutionError
	switch {
	case errors.As(err, &running):
		l.metricRecorder.RecordLaunchRejected(ctx, jobName, RejectedAlreadyRunning)
	case errors.As(err, &duplicate):
		l.metricRecorder.RecordLaunchRejected(ctx, jobName, RejectedDuplicate)
	case errors.Is(err, ErrJobNotRestartable):
		l.metricRecorder.RecordLaunchRejected(ctx, jobName, RejectedNotRestartable)
	}
	logger.Warnf("Launch of Job '%s' rejected: %v", jobName, err)
}

// Wait implements JobLauncher. Executions started by another process are polled.
func (l *SimpleJobLauncher) Wait(ctx context.Context, executionID string) (*model.JobExecution, error) {
	l.mu.Lock()
	run, ok := l.active[executionID]
	l.mu.Unlock()
	if ok {
		select {
		case <-run.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return l.jobRepository.FindJobExecutionByID(ctx, executionID)
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		je, err := l.jobRepository.FindJobExecutionByID(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if je.Status.IsFinished() {
			return je, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LaunchAndWait launches jobName and blocks until the execution is terminal.
func (l *SimpleJobLauncher) LaunchAndWait(ctx context.Context, jobName string, params model.JobParameters, opts ...LaunchOption) (*model.JobExecution, error) {
	je, err := l.Launch(ctx, jobName, params, opts...)
	if err != nil {
		return nil, err
	}
	return l.Wait(context.WithoutCancel(ctx), je.ID)
}

// Stop cancels the context of a running execution.
func (l *SimpleJobLauncher) Stop(executionID string) error {
	l.mu.Lock()
	run, ok := l.active[executionID]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, executionID)
	}
	logger.Infof("Stop requested for JobExecution (ID: %s).", executionID)
	run.cancel()
	return nil
}

// Shutdown stops every running execution and waits for them, or for ctx.
func (l *SimpleJobLauncher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	for _, run := range l.active {
		run.cancel()
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)
