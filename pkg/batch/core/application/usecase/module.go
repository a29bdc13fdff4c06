package usecase

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	"go.uber.org/fx"
)

// JobRegistryParams collects the jobs contributed to the "jobs" group.
type JobRegistryParams struct {
	fx.In
	Jobs []port.Job `group:"jobs"`
}

// NewJobRegistryFromGroup builds the JobRegistry from the "jobs" group.
func NewJobRegistryFromGroup(p JobRegistryParams) (*JobRegistry, error) {
	return NewJobRegistry(p.Jobs...)
}

// Module is the Fx module for JobRegistry, JobLauncher, JobOperator, and JobExplorer.
var Module = fx.Options(
	fx.Provide(NewJobRegistryFromGroup),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
	fx.Provide(NewSimpleJobLauncher),
	fx.Provide(func(launcher *SimpleJobLauncher) JobLauncher { return launcher }),
	fx.Provide(fx.Annotate(
		NewDefaultJobOperator,
		fx.As(new(JobOperator)),
	)),
	// Running executions are stopped when the application shuts down.
	fx.Invoke(func(lc fx.Lifecycle, launcher *SimpleJobLauncher) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return launcher.Shutdown(ctx)
			},
		})
	}),
)
