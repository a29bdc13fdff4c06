package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// migratorImpl runs golang-migrate against the pool of a DBConnection. The pool is shared
// with readers and writers of running steps, so closing the migrate instance must never
// close it: postgres and mysql run on a dedicated *sql.Conn, sqlite through sharedPoolDriver.
type migratorImpl struct {
	dbConn database.DBConnection
	dbType string
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(dbConn database.DBConnection) Migrator {
	return &migratorImpl{
		dbConn: dbConn,
		dbType: dbConn.Type(),
	}
}

// sharedPoolDriver keeps Close from reaching the *sql.DB it wraps.
type sharedPoolDriver struct {
	migratedb.Driver
}

func (sharedPoolDriver) Close() error { return nil }

func (m *migratorImpl) getDatabaseDriver(ctx context.Context, sqlDB *sql.DB, tableName string) (migratedb.Driver, error) {
	switch m.dbType {
	case "postgres", "redshift", "mysql":
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire connection: %w", err)
		}
		var driver migratedb.Driver
		if m.dbType == "mysql" {
			driver, err = mysql.WithConnection(ctx, conn, &mysql.Config{MigrationsTable: tableName})
		} else {
			driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: tableName})
		}
		if err != nil {
			conn.Close()
			return nil, err
		}
		return driver, nil
	case "sqlite":
		driver, err := sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: tableName})
		if err != nil {
			return nil, err
		}
		return sharedPoolDriver{Driver: driver}, nil
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *migratorImpl) getMigrateInstance(ctx context.Context, migrationFS fs.FS, path string, tableName string) (*migrate.Migrate, error) {
	sqlDB, err := m.dbConn.GetSQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	dbDriver, err := m.getDatabaseDriver(ctx, sqlDB, tableName)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		sourceDriver.Close()
		dbDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mInstance, nil
}

func (m *migratorImpl) runMigration(ctx context.Context, migrationFS fs.FS, path string, command string, tableName string) error {
	logger.Infof("Executing migration '%s' (DB: %s, Path: %s, Table: %s)", command, m.dbConn.Name(), path, tableName)

	mInstance, err := m.getMigrateInstance(ctx, migrationFS, path, tableName)
	if err != nil {
		return err
	}
	defer mInstance.Close()

	// golang-migrate checks GracefulStop between migrations.
	stop := context.AfterFunc(ctx, func() {
		select {
		case mInstance.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	var migrateErr error
	switch command {
	case "up":
		migrateErr = mInstance.Up()
	case "down":
		migrateErr = mInstance.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}

	if migrateErr != nil && !errors.Is(migrateErr, migrate.ErrNoChange) {
		if version, dirty, versionErr := mInstance.Version(); versionErr == nil {
			logger.Errorf("Migration '%s' failed at version %d (dirty: %t)", command, version, dirty)
		}
		return fmt.Errorf("migration failed for command '%s' (DB: %s, Path: %s): %w", command, m.dbType, path, migrateErr)
	}

	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}

func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, "up", tableName)
}

func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, "down", tableName)
}
