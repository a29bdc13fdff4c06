package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
)

// GormTxAdapter implements tx.Tx and database.DBExecutor on an open GORM transaction.
type GormTxAdapter struct {
	gormExecutor
	tx.Synchronizations
	done bool
}

var (
	_ tx.Tx               = (*GormTxAdapter)(nil)
	_ database.DBExecutor = (*GormTxAdapter)(nil)
)

// Savepoint implements tx.Tx.
func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager for one named connection.
type GormTransactionManager struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

var _ tx.TransactionManager = (*GormTransactionManager)(nil)

// NewGormTransactionManager creates a transaction manager for the connection named dbName.
func NewGormTransactionManager(dbResolver database.DBConnectionResolver, dbName string) *GormTransactionManager {
	return &GormTransactionManager{dbResolver: dbResolver, dbName: dbName}
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	conn, err := m.dbResolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.dbName, err)
	}
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("internal error: DBConnection implementation is %T, not *GormDBAdapter", conn)
	}
	return BeginTx(ctx, adapter.GetGormDB(), opts...)
}

// BeginTx starts a transaction on db.
func BeginTx(ctx context.Context, db *gorm.DB, opts ...*sql.TxOptions) (*GormTxAdapter, error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}
	gormTx := db.WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTxAdapter{gormExecutor: gormExecutor{db: gormTx}}, nil
}

// Commit runs the before-commit callbacks and commits. A failing callback rolls the
// transaction back and its error is returned.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	if gormTx.done {
		return sql.ErrTxDone
	}
	if err := gormTx.TriggerBeforeCommit(); err != nil {
		_ = m.Rollback(gormTx)
		return err
	}
	gormTx.done = true
	if err := gormTx.db.Commit().Error; err != nil {
		gormTx.TriggerAfterRollback()
		return err
	}
	gormTx.Clear()
	return nil
}

// Rollback rolls the transaction back and runs the after-rollback callbacks.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	if gormTx.done {
		return sql.ErrTxDone
	}
	gormTx.done = true
	err := gormTx.db.Rollback().Error
	gormTx.TriggerAfterRollback()
	return err
}
