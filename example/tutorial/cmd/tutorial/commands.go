package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration/filesystem"
	usecase "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	sqlRepo "github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/sql"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/app/jobparams"
	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/app/scheduler"
)

const lifecycleTimeout = 30 * time.Second

type rootOptions struct {
	embedded    config.EmbeddedConfig
	configFile  string
	envFile     string
	metricsAddr string
}

func newRootCommand(embedded config.EmbeddedConfig) *cobra.Command {
	o := &rootOptions{embedded: embedded}
	root := &cobra.Command{
		Use:          "tutorial",
		Short:        "Run the surfin tutorial batch jobs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "YAML configuration file replacing the embedded one")
	root.PersistentFlags().StringVar(&o.envFile, "env-file", os.Getenv("ENV_FILE_PATH"), ".env file loaded before the configuration (default .env)")
	root.PersistentFlags().StringVar(&o.metricsAddr, "metrics-addr", "", "listen address of the /metrics and /healthz server, e.g. :9090")

	root.AddCommand(o.runCommand(), o.scheduleCommand(), o.jobsCommand(), o.migrateCommand())
	return root
}

// loadConfig loads the embedded or --config YAML, applies the flag overrides and pushes
// the process-wide settings.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	data := o.embedded
	if o.configFile != "" {
		b, err := os.ReadFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		data = b
	}
	cfg, err := config.LoadConfig(o.envFile, data)
	if err != nil {
		return nil, err
	}
	if o.metricsAddr != "" {
		cfg.Surfin.Observability.Metrics.Addr = o.metricsAddr
	}
	if err := config.Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp starts an application built from the common options plus extra, calls fn and
// stops the application.
func (o *rootOptions) withApp(ctx context.Context, fn func(ctx context.Context) error, extra ...fx.Option) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	app := fx.New(append(GetApplicationOptions(ctx, cfg), extra...)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			logger.Errorf("Application stop failed: %v", err)
		}
	}()
	return fn(ctx)
}

func (o *rootOptions) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job> [key=value ...]",
		Short: "Launch a job and wait for it to finish",
		Long: "Launch a job and wait for it to finish. The command fails unless the job completes.\n" +
			"Parameter types are inferred; a (long), (double), (date) or (string) key suffix forces one.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobName := args[0]
			params, err := jobparams.Parse(args[1:])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var launcher *usecase.SimpleJobLauncher
			return o.withApp(ctx, func(ctx context.Context) error {
				je, err := launcher.LaunchAndWait(ctx, jobName, params)
				if err != nil {
					return err
				}
				logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
					jobName, je.ID, je.Status, je.ExitStatus)
				if je.Status != model.BatchStatusCompleted {
					return fmt.Errorf("job '%s' finished with status %s", jobName, je.Status)
				}
				return nil
			}, fx.Populate(&launcher))
		},
	}
}

func (o *rootOptions) scheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Launch jobs on the configured cron schedules until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.withApp(ctx, func(ctx context.Context) error {
				<-ctx.Done()
				logger.Infof("Shutdown requested; stopping the scheduler.")
				return nil
			}, scheduler.Module)
		},
	}
}

func (o *rootOptions) jobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the registered jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			var registry *usecase.JobRegistry
			app := fx.New(append(GetApplicationOptions(cmd.Context(), cfg), fx.Populate(&registry))...)
			if err := app.Err(); err != nil {
				return err
			}
			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (o *rootOptions) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the job repository schema to the metadata database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg      *config.Config
				resolver database.DBConnectionResolver
				migrator migration.MigratorProvider
			)
			return o.withApp(cmd.Context(), func(ctx context.Context) error {
				repo := sqlRepo.NewGormJobRepository(resolver, cfg.Surfin.Infrastructure.JobRepositoryDBRef)
				if err := repo.Migrate(ctx, filesystem.FrameworkMigrationsFS(), migrator); err != nil {
					return err
				}
				logger.Infof("Job repository schema is up to date on '%s'.", cfg.Surfin.Infrastructure.JobRepositoryDBRef)
				return nil
			}, fx.Populate(&cfg, &resolver, &migrator))
		},
	}
}
