// Package tx defines the transaction boundary used by chunk-oriented steps.
// One chunk is written inside one Tx; a failure rolls the whole chunk back.
package tx

import (
	"context"
	"database/sql"
)

// Operations accepted by TxExecutor.ExecuteUpdate.
const (
	OperationCreate = "CREATE"
	OperationUpdate = "UPDATE"
	OperationDelete = "DELETE"
)

// TxExecutor is the set of write operations available inside a transaction.
type TxExecutor interface {
	// ExecuteUpdate performs a CREATE, UPDATE or DELETE of model on tableName.
	// For UPDATE and DELETE, query holds column = value conditions combined with AND.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model (a struct or a slice), updating updateColumns when a row
	// with the same conflictColumns exists. With no updateColumns a conflict is ignored.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx is an ongoing transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a named savepoint.
	Savepoint(name string) error
	// RollbackToSavepoint undoes the work done after the named savepoint.
	RollbackToSavepoint(name string) error

	// BeforeCommit registers fn to run when the transaction commits, before the underlying
	// commit. An error from fn rolls the transaction back instead.
	BeforeCommit(fn func() error)
	// AfterRollback registers fn to run after the transaction rolls back.
	AfterRollback(fn func())
}

// TransactionManager begins, commits and rolls back transactions.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

type txKey struct{}

// WithTx returns a context carrying tx.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txKey{}).(Tx)
	return t, ok
}
