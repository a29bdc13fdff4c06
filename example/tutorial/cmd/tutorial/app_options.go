package main

import (
	"context"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm/sqlite"
	storage "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration"
	usecase "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	inframetrics "github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/metrics"
	inmemoryRepo "github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/inmemory"
	sqlRepo "github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/surfin-tutorial/pkg/batch/listener"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"

	appjob "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/app/job"
)

// GetApplicationOptions builds the fx options shared by every command. cfg is already
// loaded and applied; appCtx is cancelled on SIGINT or SIGTERM.
func GetApplicationOptions(appCtx context.Context, cfg *config.Config) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		cfg,
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, metrics.Module)
	options = append(options, inframetrics.Module)
	options = append(options, gormadapter.Module)
	options = append(options, sqlite.Module, postgres.Module, mysql.Module)
	options = append(options, storage.Module)
	options = append(options, local.Module, gcs.Module)
	options = append(options, migration.Module)
	switch cfg.Surfin.Infrastructure.JobRepositoryType {
	case config.RepositoryTypeSQL:
		options = append(options, sqlRepo.Module)
	default:
		options = append(options, inmemoryRepo.Module)
	}
	options = append(options, runner.Module)
	options = append(options, usecase.Module)
	options = append(options, batchlistener.Module)
	options = append(options, appjob.Module)

	return options
}
