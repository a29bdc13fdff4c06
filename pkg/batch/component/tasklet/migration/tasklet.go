package migration

import (
	"context"
	"io/fs"

	"github.com/mitchellh/mapstructure"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

const taskletName = "migration_tasklet"

// MigrationTaskletConfig holds the properties of a MigrationTasklet.
type MigrationTaskletConfig struct {
	// DbRef is the name of the database connection to migrate.
	DbRef string `mapstructure:"dbRef"`
	// MigrationDir is the directory inside the migration FS. Defaults to the database type.
	MigrationDir string `mapstructure:"migrationDir"`
	// Command is "up" (default) or "down".
	Command string `mapstructure:"command"`
	// IsFramework selects the framework migrations table instead of the application one.
	IsFramework bool `mapstructure:"isFramework"`
}

// MigrationTasklet applies the migrations of one fs.FS to a named database connection.
type MigrationTasklet struct {
	dbResolver       database.DBConnectionResolver
	migratorProvider MigratorProvider
	migrationFS      fs.FS
	cfg              MigrationTaskletConfig
}

var _ port.Tasklet = (*MigrationTasklet)(nil)

// NewMigrationTasklet creates a MigrationTasklet from properties (see MigrationTaskletConfig).
func NewMigrationTasklet(
	dbResolver database.DBConnectionResolver,
	migratorProvider MigratorProvider,
	migrationFS fs.FS,
	properties map[string]interface{},
) (*MigrationTasklet, error) {
	var cfg MigrationTaskletConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &cfg})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(properties); err != nil {
		return nil, exception.NewBatchError(taskletName, "failed to decode MigrationTasklet properties", err, false, false)
	}
	if cfg.DbRef == "" {
		return nil, exception.NewBatchErrorf(taskletName, "Property 'dbRef' is required for MigrationTasklet")
	}
	if migrationFS == nil {
		return nil, exception.NewBatchErrorf(taskletName, "a migration FS is required for MigrationTasklet")
	}
	if cfg.Command == "" {
		cfg.Command = "up"
	}
	logger.Debugf("MigrationTasklet initialized: DB=%s, Dir=%s, Command=%s, IsFramework=%t", cfg.DbRef, cfg.MigrationDir, cfg.Command, cfg.IsFramework)

	return &MigrationTasklet{
		dbResolver:       dbResolver,
		migratorProvider: migratorProvider,
		migrationFS:      migrationFS,
		cfg:              cfg,
	}, nil
}

// Execute runs the configured migration command.
func (t *MigrationTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	dbConn, err := t.dbResolver.ResolveDBConnection(ctx, t.cfg.DbRef)
	if err != nil {
		return model.RepeatStatusFinished, exception.NewBatchError(taskletName, "failed to resolve DB connection '"+t.cfg.DbRef+"'", err, false, false)
	}

	migrationTable := AppMigrationsTable
	if t.cfg.IsFramework {
		migrationTable = FrameworkMigrationsTable
	}
	migrationDir := t.cfg.MigrationDir
	if migrationDir == "" {
		migrationDir = dbConn.Type()
	}

	migrator := t.migratorProvider.NewMigrator(dbConn)
	switch t.cfg.Command {
	case "up":
		err = migrator.Up(ctx, t.migrationFS, migrationDir, migrationTable)
	case "down":
		err = migrator.Down(ctx, t.migrationFS, migrationDir, migrationTable)
	default:
		return model.RepeatStatusFinished, exception.NewBatchErrorf(taskletName, "Unknown migration command: %s", t.cfg.Command)
	}
	if err != nil {
		return model.RepeatStatusFinished, exception.NewBatchError(taskletName, "Migration '"+t.cfg.Command+"' failed", err, false, false)
	}

	stepExecution.ExecutionContext.Put("migration.dir", migrationDir)
	return model.RepeatStatusFinished, nil
}
