// Package gorm implements the database adapter on top of GORM.
package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/config"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	gormExecutor
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

var _ database.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps an opened *gorm.DB.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return &GormDBAdapter{
		gormExecutor: gormExecutor{db: db},
		sqlDB:        sqlDB,
		cfg:          cfg,
		dbType:       cfg.Type,
		name:         name,
	}, nil
}

// GetGormDB returns the underlying *gorm.DB instance.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

func (a *GormDBAdapter) Close() error {
	if a.sqlDB != nil {
		logger.Infof("Closing database connection '%s'...", a.name)
		return a.sqlDB.Close()
	}
	return nil
}

func (a *GormDBAdapter) Type() string {
	return a.dbType
}

func (a *GormDBAdapter) Name() string {
	return a.name
}

// RefreshConnection pings the connection pool.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	if a.sqlDB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return a.sqlDB.PingContext(ctx)
}

func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, fmt.Errorf("underlying sql.DB is nil")
	}
	return a.sqlDB, nil
}

// RunInTx runs fn inside a GORM transaction.
func (a *GormDBAdapter) RunInTx(ctx context.Context, fn func(exec database.DBExecutor) error) error {
	return a.db.WithContext(ctx).Transaction(func(txDB *gorm.DB) error {
		return fn(gormExecutor{db: txDB})
	})
}

func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return IsTableNotExistError(err)
}

func (a *GormDBAdapter) IsUniqueViolation(err error) bool {
	return IsUniqueViolation(err)
}
