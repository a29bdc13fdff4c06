// Package database declares the database connection abstraction used by the job repository
// and the database item readers and writers. Implementations live in the gorm subpackage.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/surfin-tutorial/pkg/batch/core/adapter"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
)

// Query describes a read with optional conditions, ordering and paging.
type Query struct {
	// Conditions are column = value pairs combined with AND.
	Conditions map[string]interface{}
	// Where is an additional raw condition with positional Args.
	Where string
	Args  []interface{}
	// OrderBy is a raw ORDER BY clause such as "id asc".
	OrderBy string
	// Limit and Offset page the result. Zero Limit means no limit.
	Limit  int
	Offset int
}

// DBExecutor defines the write and read operations available on a connection or inside a
// transaction.
type DBExecutor interface {
	tx.TxExecutor

	// ExecuteQuery executes a SELECT into target (a pointer to a struct or a slice).
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced executes a read operation with optional sorting and limiting.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// ExecuteQueryPage executes q into target.
	ExecuteQueryPage(ctx context.Context, target interface{}, q Query) error

	// Count counts the number of records matching the query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// Pluck retrieves the distinct values of column.
	Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error
}

// DBConnection represents an abstraction of a database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection
	DBExecutor

	// RunInTx runs fn inside a database transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(exec DBExecutor) error) error

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// IsUniqueViolation checks if the given error is a unique or primary key violation.
	IsUniqueViolation(err error) bool
	// RefreshConnection pings the database.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves a named database connection, reconnecting when needed.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveDBConnection resolves a database connection instance by name.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider provides database connections of one database type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "postgres").
	Type() string
	// ForceReconnect closes and re-establishes the connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx group name of all DBProvider implementations.
const DBProviderGroup = "db_providers"
