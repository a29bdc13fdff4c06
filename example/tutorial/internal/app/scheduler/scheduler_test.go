package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/schedule"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/inmemory"
)

type nopLauncher struct{}

func (nopLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters, opts ...usecase.LaunchOption) (*model.JobExecution, error) {
	return &model.JobExecution{ID: "exec", JobName: jobName}, nil
}

func (nopLauncher) Wait(ctx context.Context, executionID string) (*model.JobExecution, error) {
	return &model.JobExecution{ID: executionID, Status: model.BatchStatusCompleted}, nil
}

func registry(t *testing.T) *usecase.JobRegistry {
	t.Helper()
	repo := inmemory.NewInMemoryJobRepository()
	noop := port.TaskletFunc(func(context.Context, *model.StepExecution) (model.RepeatStatus, error) {
		return model.RepeatStatusFinished, nil
	})
	flow, err := runner.NewFlowBuilder("helloWorldJob").Start(tasklet.NewTaskletStep("helloWorldStep", noop, repo)).Build()
	require.NoError(t, err)
	r, err := usecase.NewJobRegistry(runner.NewFlowJob(flow, repo))
	require.NoError(t, err)
	return r
}

func newParams(t *testing.T, schedules ...config.ScheduleConfig) Params {
	cfg := config.NewConfig()
	cfg.Surfin.Batch.Schedules = schedules
	return Params{Config: cfg, Launcher: nopLauncher{}, Registry: registry(t)}
}

func TestNew_RegistersConfiguredSchedules(t *testing.T) {
	s, err := New(newParams(t,
		config.ScheduleConfig{Cron: "0 */1 * * * *", JobName: "helloWorldJob"},
		config.ScheduleConfig{Cron: "@every 1h", JobName: "helloWorldJob", Parameters: map[string]string{"fileName": "players.csv"}},
	))
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "helloWorldJob", e.JobName)
	}
}

func TestNew_RejectsInvalidSchedules(t *testing.T) {
	_, err := New(newParams(t, config.ScheduleConfig{Cron: "0 */1 * * * *", JobName: "missingJob"}))
	assert.Error(t, err)

	_, err = New(newParams(t, config.ScheduleConfig{Cron: "every minute", JobName: "helloWorldJob"}))
	assert.Error(t, err)

	_, err = New(newParams(t, config.ScheduleConfig{Cron: "@every 1m", JobName: "helloWorldJob", Parameters: map[string]string{"n(long)": "x"}}))
	assert.Error(t, err)

	p := newParams(t)
	p.Config.Surfin.System.Timezone = "Mars/Olympus"
	_, err = New(p)
	assert.Error(t, err)
}

func TestWithRequestTime(t *testing.T) {
	base := model.NewJobParameters()
	base.PutString("fileName", "players.csv")
	fn := withRequestTime(base)

	fired := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	params := fn(fired)
	rt, ok := params.GetLong(RequestTimeParam)
	require.True(t, ok)
	assert.Equal(t, fired.UnixMilli(), rt)
	assert.Equal(t, "players.csv", params.Get("fileName"))
	assert.Nil(t, base.Get(RequestTimeParam), "the configured parameters are not modified")
}

func TestModule_StartsAndStopsWithTheApplication(t *testing.T) {
	p := newParams(t, config.ScheduleConfig{Cron: "@every 1h", JobName: "helloWorldJob"})
	var s *schedule.Scheduler
	app := fxtest.New(t,
		fx.Supply(p.Config, p.Registry),
		fx.Provide(func() usecase.JobLauncher { return nopLauncher{} }),
		Module,
		fx.Populate(&s),
	)
	app.RequireStart()
	assert.Len(t, s.Entries(), 1)
	app.RequireStop()
}
