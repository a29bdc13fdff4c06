package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

type recordingSteps struct {
	ran []string
}

func (r *recordingSteps) step(repo *inmemory.InMemoryJobRepository, name string, fn func(se *model.StepExecution) error) port.Step {
	return tasklet.NewTaskletStep(name, port.TaskletFunc(func(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
		r.ran = append(r.ran, name)
		if fn == nil {
			return model.RepeatStatusFinished, nil
		}
		return model.RepeatStatusFinished, fn(se)
	}), repo)
}

func launch(t *testing.T, repo *inmemory.InMemoryJobRepository, job port.Job, params model.JobParameters) (*model.JobExecution, error) {
	t.Helper()
	je, err := repo.CreateJobExecution(context.Background(), job.JobName(), params)
	require.NoError(t, err)
	r := runner.NewSimpleJobRunner(repo, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())
	return je, r.Run(context.Background(), job, je)
}

func TestFlowJob_RoutesOnExitStatus(t *testing.T) {
	cases := []struct {
		name     string
		outcome  func(se *model.StepExecution) error
		wantRan  []string
		wantStat model.JobStatus
	}{
		{"completed goes to B", nil, []string{"A", "B"}, model.BatchStatusCompleted},
		{"failed goes to C", func(se *model.StepExecution) error { return errors.New("boom") }, []string{"A", "C"}, model.BatchStatusCompleted},
		{"other exit goes to D", func(se *model.StepExecution) error { se.SetExitStatus("SKIPPED"); return nil }, []string{"A", "D"}, model.BatchStatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := inmemory.NewInMemoryJobRepository()
			rec := &recordingSteps{}
			a := rec.step(repo, "A", tc.outcome)
			b := rec.step(repo, "B", nil)
			c := rec.step(repo, "C", nil)
			d := rec.step(repo, "D", nil)

			flow, err := runner.NewFlowBuilder("routing").
				Start(a).On("FAILED").To(c).
				From(a).On("COMPLETED").To(b).
				From(a).On("*").To(d).
				Build()
			require.NoError(t, err)

			je, err := launch(t, repo, runner.NewFlowJob(flow, repo), model.NewJobParameters())
			require.NoError(t, err)
			assert.Equal(t, tc.wantRan, rec.ran)
			assert.Equal(t, tc.wantStat, je.Status)
			assert.Len(t, je.StepExecutions, 2)

			stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStat, stored.Status)
		})
	}
}

func TestFlowJob_FailedStepWithoutTransitionFailsJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	rec := &recordingSteps{}
	a := rec.step(repo, "A", nil)
	b := rec.step(repo, "B", func(se *model.StepExecution) error { return errors.New("boom") })
	c := rec.step(repo, "C", nil)

	flow, err := runner.NewFlowBuilder("linear").Start(a).Next(b).Next(c).Build()
	require.NoError(t, err)

	je, err := launch(t, repo, runner.NewFlowJob(flow, repo), model.NewJobParameters())
	var failure *exception.StepFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "B", failure.StepName)
	assert.Equal(t, []string{"A", "B"}, rec.ran)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, model.ExitStatusFailed, je.ExitStatus)
	assert.NotEmpty(t, je.Failures)
}

func TestFlowJob_JobContextVisibleToNextStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	rec := &recordingSteps{}
	var seen string
	producer := rec.step(repo, "producer", func(se *model.StepExecution) error {
		se.JobExecution.ExecutionContext.Put("someKey", "hello!!")
		return nil
	})
	consumer := rec.step(repo, "consumer", func(se *model.StepExecution) error {
		seen, _ = se.JobExecution.ExecutionContext.GetString("someKey")
		return nil
	})
	flow, err := runner.NewFlowBuilder("context").Start(producer).Next(consumer).Build()
	require.NoError(t, err)

	je, err := launch(t, repo, runner.NewFlowJob(flow, repo), model.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, "hello!!", seen)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	v, ok := stored.ExecutionContext.GetString("someKey")
	assert.True(t, ok)
	assert.Equal(t, "hello!!", v)
}

func TestFlowJob_RestartSkipsCompletedSteps(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	rec := &recordingSteps{}
	fail := true
	first := rec.step(repo, "first", nil)
	second := rec.step(repo, "second", func(se *model.StepExecution) error {
		if fail {
			se.ExecutionContext.Put("attempted", true)
			return errors.New("transient")
		}
		_, ok := se.ExecutionContext.Get("attempted")
		if !ok {
			return errors.New("step context was not restored")
		}
		return nil
	})
	flow, err := runner.NewFlowBuilder("restartable").Start(first).Next(second).Build()
	require.NoError(t, err)
	job := runner.NewFlowJob(flow, repo)

	params := model.NewJobParameters()
	params.PutString("input", "a.csv")

	je1, err := launch(t, repo, job, params)
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, je1.Status)

	fail = false
	rec.ran = nil
	je2, err := launch(t, repo, job, params)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, rec.ran)
	assert.Equal(t, model.BatchStatusCompleted, je2.Status)
	assert.Equal(t, 1, je2.RestartCount)
	require.Len(t, je2.StepExecutions, 1)
	assert.Equal(t, "second", je2.StepExecutions[0].StepName)
}

type failingBeforeJob struct{ afterCalled bool }

func (l *failingBeforeJob) BeforeJob(ctx context.Context, je *model.JobExecution) error {
	return errors.New("not allowed")
}

func (l *failingBeforeJob) AfterJob(ctx context.Context, je *model.JobExecution) error {
	l.afterCalled = true
	return errors.New("ignored")
}

func TestFlowJob_BeforeJobFailureRunsNoStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	rec := &recordingSteps{}
	flow, err := runner.NewFlowBuilder("guarded").Start(rec.step(repo, "A", nil)).Build()
	require.NoError(t, err)
	listener := &failingBeforeJob{}

	je, err := launch(t, repo, runner.NewFlowJob(flow, repo, runner.WithListeners(listener)), model.NewJobParameters())
	require.Error(t, err)
	assert.Empty(t, rec.ran)
	assert.Empty(t, je.StepExecutions)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.True(t, listener.afterCalled)
}

func TestFlowJob_CancelledContextStops(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	rec := &recordingSteps{}
	ctx, cancel := context.WithCancel(context.Background())
	a := rec.step(repo, "A", func(se *model.StepExecution) error {
		cancel()
		return nil
	})
	b := rec.step(repo, "B", nil)
	flow, err := runner.NewFlowBuilder("stoppable").Start(a).Next(b).Build()
	require.NoError(t, err)
	job := runner.NewFlowJob(flow, repo)

	je, err := repo.CreateJobExecution(context.Background(), job.JobName(), model.NewJobParameters())
	require.NoError(t, err)
	r := runner.NewSimpleJobRunner(repo, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())
	require.NoError(t, r.Run(ctx, job, je))

	assert.Equal(t, []string{"A"}, rec.ran)
	assert.Equal(t, model.BatchStatusStopped, je.Status)
	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, stored.Status)
}

func TestFlowJob_TerminalTransitions(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	rec := &recordingSteps{}
	a := rec.step(repo, "A", func(se *model.StepExecution) error { se.SetExitStatus("HALT"); return nil })
	flow, err := runner.NewFlowBuilder("halting").Start(a).On("HALT").Stop().Build()
	require.NoError(t, err)

	je, err := launch(t, repo, runner.NewFlowJob(flow, repo), model.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, je.Status)

	repo2 := inmemory.NewInMemoryJobRepository()
	b := rec.step(repo2, "B", nil)
	flow, err = runner.NewFlowBuilder("failing").Start(b).On("COMPLETED").Fail().Build()
	require.NoError(t, err)
	je, err = launch(t, repo2, runner.NewFlowJob(flow, repo2), model.NewJobParameters())
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
}

func TestFlowJob_ValidateParameters(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	flow, err := runner.NewFlowBuilder("validated").Start((&recordingSteps{}).step(repo, "A", nil)).Build()
	require.NoError(t, err)
	job := runner.NewFlowJob(flow, repo, runner.WithValidator(port.JobParametersValidatorFunc(func(p model.JobParameters) error {
		if _, ok := p.GetString("fileName"); !ok {
			return errors.New("fileName is required")
		}
		return nil
	})), runner.PreventRestart())

	var ve *exception.ValidationError
	assert.ErrorAs(t, job.ValidateParameters(model.NewJobParameters()), &ve)
	p := model.NewJobParameters()
	p.PutString("fileName", "x.csv")
	assert.NoError(t, job.ValidateParameters(p))
	assert.False(t, job.IsRestartable())
}
