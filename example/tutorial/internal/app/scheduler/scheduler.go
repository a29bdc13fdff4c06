// Package scheduler launches the tutorial jobs on the cron schedules of the configuration.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/schedule"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/app/jobparams"
)

// RequestTimeParam holds the fire time in epoch milliseconds.
const RequestTimeParam = "requestTime"

type Params struct {
	fx.In
	Config   *config.Config
	Launcher usecase.JobLauncher
	Registry *usecase.JobRegistry
}

// New creates a Scheduler with one entry per configured schedule. Every launch carries the
// configured parameters and the requestTime of the fire.
func New(p Params) (*schedule.Scheduler, error) {
	loc, err := time.LoadLocation(p.Config.Surfin.System.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", p.Config.Surfin.System.Timezone, err)
	}
	// Stop waits for fired jobs so shutdown lets them reach a terminal status.
	s := schedule.NewScheduler(p.Launcher, schedule.WithLocation(loc), schedule.WithWaitForCompletion())
	for _, sc := range p.Config.Surfin.Batch.Schedules {
		if _, err := p.Registry.Get(sc.JobName); err != nil {
			return nil, fmt.Errorf("schedule '%s': %w", sc.Cron, err)
		}
		base, err := jobparams.FromMap(sc.Parameters)
		if err != nil {
			return nil, fmt.Errorf("schedule '%s' of job '%s': %w", sc.Cron, sc.JobName, err)
		}
		if _, err := s.Register(sc.Cron, sc.JobName, withRequestTime(base)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func withRequestTime(base model.JobParameters) schedule.ParamsFunc {
	return func(fireTime time.Time) model.JobParameters {
		params := base.Copy()
		params.PutLong(RequestTimeParam, fireTime.UnixMilli())
		return params
	}
}

type lifecycleParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Scheduler *schedule.Scheduler
	AppCtx    context.Context `name:"appCtx" optional:"true"`
}

// Module starts the scheduler with the application and stops it, waiting for running
// fire callbacks, on shutdown. Launches run under the "appCtx" context when one is supplied.
var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(func(p lifecycleParams) {
		parent := p.AppCtx
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithCancel(parent)
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				if len(p.Scheduler.Entries()) == 0 {
					logger.Warnf("No schedules configured; the scheduler has nothing to run.")
				}
				p.Scheduler.Start(ctx)
				return nil
			},
			OnStop: func(context.Context) error {
				p.Scheduler.Stop()
				cancel()
				return nil
			},
		})
	}),
)
