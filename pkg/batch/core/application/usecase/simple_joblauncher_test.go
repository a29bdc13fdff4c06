package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

type rejectionRecorder struct {
	*metrics.NoOpMetricRecorder
	mu      sync.Mutex
	reasons []string
}

func (r *rejectionRecorder) RecordLaunchRejected(ctx context.Context, jobName string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *rejectionRecorder) Reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

type runIDIncrementer struct{}

func (runIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()
	id, _ := params.GetLong("run.id")
	next.PutLong("run.id", id+1)
	return next
}

type fixture struct {
	repo     *inmemory.InMemoryJobRepository
	recorder *rejectionRecorder
	launcher *usecase.SimpleJobLauncher
	operator *usecase.DefaultJobOperator
	explorer *usecase.SimpleJobExplorer
}

func newFixture(t *testing.T, jobs func(repo *inmemory.InMemoryJobRepository) []port.Job) *fixture {
	t.Helper()
	repo := inmemory.NewInMemoryJobRepository()
	registry, err := usecase.NewJobRegistry(jobs(repo)...)
	require.NoError(t, err)
	recorder := &rejectionRecorder{NoOpMetricRecorder: &metrics.NoOpMetricRecorder{}}
	jobRunner := runner.NewSimpleJobRunner(repo, recorder, metrics.NewNoOpTracer())
	launcher := usecase.NewSimpleJobLauncher(repo, registry, jobRunner, recorder)
	t.Cleanup(func() { _ = launcher.Shutdown(context.Background()) })
	return &fixture{
		repo:     repo,
		recorder: recorder,
		launcher: launcher,
		operator: usecase.NewDefaultJobOperator(repo, launcher),
		explorer: usecase.NewSimpleJobExplorer(repo),
	}
}

func singleStepJob(t *testing.T, repo *inmemory.InMemoryJobRepository, name string, tl port.Tasklet, opts ...runner.JobOption) port.Job {
	t.Helper()
	flow, err := runner.NewFlowBuilder(name).Start(tasklet.NewTaskletStep(name+"Step", tl, repo)).Build()
	require.NoError(t, err)
	return runner.NewFlowJob(flow, repo, opts...)
}

func finished() port.Tasklet {
	return port.TaskletFunc(func(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
		return model.RepeatStatusFinished, nil
	})
}

func TestLaunchAndWait_CompletesAndIsVisibleToExplorer(t *testing.T) {
	f := newFixture(t, func(repo *inmemory.InMemoryJobRepository) []port.Job {
		return []port.Job{singleStepJob(t, repo, "helloJob", finished())}
	})

	je, err := f.launcher.LaunchAndWait(context.Background(), "helloJob", model.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	require.Len(t, je.StepExecutions, 1)

	names, err := f.explorer.GetJobNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"helloJob"}, names)
	executions, err := f.explorer.GetJobExecutions(context.Background(), je.JobInstanceID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestLaunch_UnknownJob(t *testing.T) {
	f := newFixture(t, func(repo *inmemory.InMemoryJobRepository) []port.Job { return nil })
	_, err := f.launcher.Launch(context.Background(), "missing", model.NewJobParameters())
	assert.ErrorIs(t, err, usecase.ErrNoSuchJob)
}

func TestLaunch_IncrementerCreatesNewInstances(t *testing.T) {
	f := newFixture(t, func(repo *inmemory.InMemoryJobRepository) []port.Job {
		return []port.Job{singleStepJob(t, repo, "incJob", finished(), runner.WithIncrementer(runIDIncrementer{}))}
	})
	ctx := context.Background()

	first, err := f.launcher.LaunchAndWait(ctx, "incJob", model.NewJobParameters())
	require.NoError(t, err)
	second, err := f.launcher.LaunchAndWait(ctx, "incJob", model.NewJobParameters())
	require.NoError(t, err)

	id1, _ := first.Parameters.GetLong("run.id")
	id2, _ := second.Parameters.GetLong("run.id")
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
	assert.NotEqual(t, first.JobInstanceID, second.JobInstanceID)
}

func TestLaunch_DuplicateAndInvalidAreRejected(t *testing.T) {
	f := newFixture(t, func(repo *inmemory.InMemoryJobRepository) []port.Job {
		return []port.Job{
			singleStepJob(t, repo, "plainJob", finished()),
			singleStepJob(t, repo, "validatedJob", finished(), runner.WithValidator(port.JobParametersValidatorFunc(func(p model.JobParameters) error {
				return errors.New("This is not csv file")
			}))),
		}
	})
	ctx := context.Background()

	_, err := f.launcher.LaunchAndWait(ctx, "plainJob", model.NewJobParameters())
	require.NoError(t, err)
	_, err = f.launcher.Launch(ctx, "plainJob", model.NewJobParameters())
	var dup *exception.DuplicateExecutionError
	assert.ErrorAs(t, err, &dup)

	_, err = f.launcher.Launch(ctx, "validatedJob", model.NewJobParameters())
	var ve *exception.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "This is not csv file")
	instances, err := f.explorer.GetJobInstances(ctx, "validatedJob")
	require.NoError(t, err)
	assert.Empty(t, instances)

	assert.Equal(t, []string{usecase.RejectedDuplicate, usecase.RejectedInvalidParameters}, f.recorder.Reasons())
}

// blockingTasklet keeps returning CONTINUABLE until released.
type blockingTasklet struct {
	started  chan struct{}
	once     sync.Once
	released atomic.Bool
}

func newBlockingTasklet() *blockingTasklet {
	return &blockingTasklet{started: make(chan struct{})}
}

func (b *blockingTasklet) Execute(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
	b.once.Do(func() { close(b.started) })
	if b.released.Load() {
		return model.RepeatStatusFinished, nil
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Millisecond):
	}
	return model.RepeatStatusContinuable, nil
}

func TestLaunch_ExclusiveRejectsOverlap(t *testing.T) {
	blocker := newBlockingTasklet()
	f := newFixture(t, func(repo *inmemory.InMemoryJobRepository) []port.Job {
		return []port.Job{singleStepJob(t, repo, "scheduledJob", blocker, runner.WithIncrementer(runIDIncrementer{}))}
	})
	ctx := context.Background()

	first, err := f.launcher.Launch(ctx, "scheduledJob", model.NewJobParameters(), usecase.Exclusive())
	require.NoError(t, err)
	<-blocker.started

	_, err = f.launcher.Launch(ctx, "scheduledJob", model.NewJobParameters(), usecase.Exclusive())
	var running *exception.JobExecutionAlreadyRunningError
	require.ErrorAs(t, err, &running)
	assert.Equal(t, []string{usecase.RejectedAlreadyRunning}, f.recorder.Reasons())

	blocker.released.Store(true)
	je, err := f.launcher.Wait(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
}

func TestOperator_StopThenRestart(t *testing.T) {
	blocker := newBlockingTasklet()
	f := newFixture(t, func(repo *inmemory.InMemoryJobRepository) []port.Job {
		return []port.Job{singleStepJob(t, repo, "longJob", blocker)}
	})
	ctx := context.Background()

	je, err := f.launcher.Launch(ctx, "longJob", model.NewJobParameters())
	require.NoError(t, err)
	<-blocker.started
	require.NoError(t, f.operator.Stop(ctx, je.ID))

	stopped, err := f.launcher.Wait(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, stopped.Status)
	assert.ErrorIs(t, f.operator.Stop(ctx, je.ID), usecase.ErrJobNotRunning)

	blocker.released.Store(true)
	restarted, err := f.operator.Restart(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, je.JobInstanceID, restarted.JobInstanceID)
	assert.Equal(t, 1, restarted.RestartCount)

	done, err := f.launcher.Wait(ctx, restarted.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, done.Status)

	_, err = f.operator.Restart(ctx, restarted.ID)
	assert.Error(t, err)
}

func TestLaunch_PreventRestart(t *testing.T) {
	f := newFixture(t, func(repo *inmemory.InMemoryJobRepository) []port.Job {
		return []port.Job{singleStepJob(t, repo, "oneShotJob", port.TaskletFunc(func(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
			return model.RepeatStatusFinished, errors.New("boom")
		}), runner.PreventRestart())}
	})
	ctx := context.Background()

	je, err := f.launcher.LaunchAndWait(ctx, "oneShotJob", model.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, je.Status)

	_, err = f.launcher.Launch(ctx, "oneShotJob", model.NewJobParameters())
	assert.ErrorIs(t, err, usecase.ErrJobNotRestartable)
}

func TestJobRegistry_RejectsDuplicateNames(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	_, err := usecase.NewJobRegistry(singleStepJob(t, repo, "a", finished()), singleStepJob(t, repo, "a", finished()))
	assert.Error(t, err)

	registry, err := usecase.NewJobRegistry(singleStepJob(t, repo, "b", finished()), singleStepJob(t, repo, "a", finished()))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, registry.Names())
}
