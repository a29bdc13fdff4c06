package tx

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
)

// ErrNoDatabase is returned by the data operations of a resourceless transaction.
var ErrNoDatabase = errors.New("resourceless transaction has no database to write to")

// ResourcelessTransactionManager manages transactions without a database. It is used by
// steps whose writers are not database backed (flat files, logs); commit and rollback only
// run the registered synchronizations.
type ResourcelessTransactionManager struct {
	begun      atomic.Int64
	committed  atomic.Int64
	rolledBack atomic.Int64
}

// NewResourcelessTransactionManager creates a ResourcelessTransactionManager.
func NewResourcelessTransactionManager() *ResourcelessTransactionManager {
	return &ResourcelessTransactionManager{}
}

var _ TransactionManager = (*ResourcelessTransactionManager)(nil)

type resourcelessTx struct {
	Synchronizations
	done bool
}

func (t *resourcelessTx) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	return 0, ErrNoDatabase
}

func (t *resourcelessTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	return 0, ErrNoDatabase
}

func (t *resourcelessTx) Savepoint(name string) error           { return nil }
func (t *resourcelessTx) RollbackToSavepoint(name string) error { return nil }

// Begin starts a transaction. Options are ignored.
func (m *ResourcelessTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.begun.Add(1)
	return &resourcelessTx{}, nil
}

// Commit runs the before-commit callbacks. If one fails the transaction is rolled back and
// the error returned.
func (m *ResourcelessTransactionManager) Commit(t Tx) error {
	rt, ok := t.(*resourcelessTx)
	if !ok {
		return errors.New("transaction was not started by ResourcelessTransactionManager")
	}
	if rt.done {
		return sql.ErrTxDone
	}
	rt.done = true
	if err := rt.TriggerBeforeCommit(); err != nil {
		rt.TriggerAfterRollback()
		m.rolledBack.Add(1)
		return err
	}
	rt.Clear()
	m.committed.Add(1)
	return nil
}

// Rollback runs the after-rollback callbacks.
func (m *ResourcelessTransactionManager) Rollback(t Tx) error {
	rt, ok := t.(*resourcelessTx)
	if !ok {
		return errors.New("transaction was not started by ResourcelessTransactionManager")
	}
	if rt.done {
		return sql.ErrTxDone
	}
	rt.done = true
	rt.TriggerAfterRollback()
	m.rolledBack.Add(1)
	return nil
}

// Stats returns the number of begun, committed and rolled back transactions.
func (m *ResourcelessTransactionManager) Stats() (begun, committed, rolledBack int64) {
	return m.begun.Load(), m.committed.Load(), m.rolledBack.Load()
}
