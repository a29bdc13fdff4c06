// Package job assembles the tutorial jobs and registers them in the "jobs" group read by
// the JobRegistry.
package job

import (
	"time"

	"go.uber.org/fx"

	database "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	storage "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/incrementer"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	step "github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/retry"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/skip"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/tasklet"
	batchlistener "github.com/tigerroll/surfin-tutorial/pkg/batch/listener"
)

// Params are the dependencies shared by the job constructors.
type Params struct {
	fx.In
	Config           *config.Config
	Repository       repository.JobRepository
	Listeners        *batchlistener.Defaults
	Storage          storage.StorageConnectionResolver
	DBResolver       database.DBConnectionResolver
	MigratorProvider migration.MigratorProvider
}

// newJob builds a restartable FlowJob with a RunIDIncrementer and the default listeners.
// extra listeners run after the defaults.
func newJob(p Params, flow *runner.Flow, opts []runner.JobOption, extra ...port.JobExecutionListener) port.Job {
	jobOpts := append(p.Listeners.JobOptions(extra...), runner.WithIncrementer(incrementer.NewRunIDIncrementer()))
	return runner.NewFlowJob(flow, p.Repository, append(jobOpts, opts...)...)
}

func newTaskletStep(p Params, name string, t port.Tasklet, opts ...step.Option) port.Step {
	return tasklet.NewTaskletStep(name, t, p.Repository, append(p.Listeners.StepOptions(), opts...)...)
}

// chunkOptions applies the configured chunk isolation and the item retry and skip policies
// on top of the default step listeners.
func chunkOptions(p Params) []step.Option {
	opts := p.Listeners.StepOptions()
	batch := p.Config.Surfin.Batch
	if batch.IsolationLevel != "" {
		opts = append(opts, step.WithIsolation(step.ParseIsolationLevel(batch.IsolationLevel)))
	}
	if r := batch.ItemRetry; r.MaxAttempts > 1 {
		var retryOpts []retry.Option
		if r.InitialInterval > 0 {
			initial := time.Duration(r.InitialInterval) * time.Millisecond
			retryOpts = append(retryOpts, retry.WithExponentialBackoff(initial, 2, 10*initial))
		}
		opts = append(opts, step.WithRetryPolicy(retry.NewSimplePolicy(r.MaxAttempts, retry.ByName(r.RetryableExceptions...), retryOpts...)))
	}
	if s := batch.ItemSkip; s.SkipLimit > 0 {
		opts = append(opts, step.WithSkipPolicy(skip.NewLimitPolicy(s.SkipLimit, skip.ByName(s.SkippableExceptions...))))
	}
	return opts
}
