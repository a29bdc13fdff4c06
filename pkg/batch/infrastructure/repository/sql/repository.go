// Package sql implements repository.JobRepository on a relational database through the
// GORM database adapter.
package sql

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/keylock"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// GormJobRepository implements the repository.JobRepository interface.
type GormJobRepository struct {
	dbResolver database.DBConnectionResolver
	// dbName is the name of the database connection used by this JobRepository (e.g., "metadata").
	dbName string
	// createLocks serializes CreateJobExecution per (job name, parameters hash) inside this
	// process; the unique index on batch_job_instance covers other processes.
	createLocks keylock.KeyLock
}

var _ repository.JobRepository = (*GormJobRepository)(nil)

// NewGormJobRepository creates a new GormJobRepository on the connection named dbName.
func NewGormJobRepository(dbResolver database.DBConnectionResolver, dbName string) *GormJobRepository {
	return &GormJobRepository{
		dbResolver: dbResolver,
		dbName:     dbName,
	}
}

// Migrate applies the framework schema migrations found in migrationFS under the directory
// named after the database type.
func (r *GormJobRepository) Migrate(ctx context.Context, migrationFS fs.FS, migratorProvider migration.MigratorProvider) error {
	conn, err := r.getDBConnection(ctx, "Migrate")
	if err != nil {
		return err
	}
	logger.Infof("Applying metadata schema to '%s' (%s).", r.dbName, conn.Type())
	if err := migratorProvider.NewMigrator(conn).Up(ctx, migrationFS, conn.Type(), migration.FrameworkMigrationsTable); err != nil {
		return exception.NewRepositoryError("Migrate", "failed to apply metadata schema", err)
	}
	return nil
}

// getDBConnection resolves the connection used by the repository.
func (r *GormJobRepository) getDBConnection(ctx context.Context, op string) (database.DBConnection, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to resolve DB connection '%s'", r.dbName), err)
	}
	return conn, nil
}

// Close is a no-op; connections are owned by the connection resolver.
func (r *GormJobRepository) Close() error {
	return nil
}
