package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
)

// Version tables. Framework and application schemas are tracked separately so each can
// be migrated on its own connection.
const (
	FrameworkMigrationsTable = "batch_framework_migrations"
	AppMigrationsTable       = "batch_app_migrations"
)

// Migrator applies the migrations stored under dir of a filesystem, recording the
// applied version in table.
type Migrator interface {
	Up(ctx context.Context, migrationFS fs.FS, dir string, table string) error
	Down(ctx context.Context, migrationFS fs.FS, dir string, table string) error
}

// MigratorProvider opens a Migrator on a resolved connection.
type MigratorProvider interface {
	NewMigrator(conn database.DBConnection) Migrator
}

// MigratorProviderFunc adapts a function to MigratorProvider.
type MigratorProviderFunc func(conn database.DBConnection) Migrator

func (f MigratorProviderFunc) NewMigrator(conn database.DBConnection) Migrator { return f(conn) }

// NewMigratorProvider returns the golang-migrate backed provider.
func NewMigratorProvider() MigratorProvider {
	return MigratorProviderFunc(func(conn database.DBConnection) Migrator { return NewMigrator(conn) })
}
