// Package database provides item readers and writers backed by a database connection.
package database

import (
	"context"
	"fmt"

	dbadapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

const defaultPageSize = 10

// ReaderConfig configures a RepositoryItemReader.
type ReaderConfig struct {
	// DBRef names the database connection to read from.
	DBRef string
	// PageSize is the number of rows fetched per query. Zero means 10.
	PageSize int
	// OrderBy is the ORDER BY clause, such as "id asc". A stable order is required for
	// paging and restart.
	OrderBy string
	// Conditions are column = value pairs combined with AND.
	Conditions map[string]interface{}
	// Where is an additional raw condition with positional Args.
	Where string
	Args  []interface{}
}

// RepositoryItemReader reads rows of T page by page. T is a GORM model; its table comes
// from a TableName method or GORM naming. The number of rows consumed is saved under
// "<name>.read.count" and a restarted step resumes at that offset.
type RepositoryItemReader[T any] struct {
	name     string
	cfg      ReaderConfig
	resolver dbadapter.DBConnectionResolver

	conn      dbadapter.DBConnection
	page      []T
	index     int
	position  int
	exhausted bool
}

// NewRepositoryItemReader creates a reader.
func NewRepositoryItemReader[T any](name string, cfg ReaderConfig, resolver dbadapter.DBConnectionResolver) *RepositoryItemReader[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &RepositoryItemReader[T]{name: name, cfg: cfg, resolver: resolver}
}

func (r *RepositoryItemReader[T]) countKey() string {
	return r.name + ".read.count"
}

func (r *RepositoryItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if r.cfg.OrderBy == "" {
		logger.Warnf("RepositoryItemReader '%s': no sort order configured, paging may be unstable.", r.name)
	}
	conn, err := r.resolver.ResolveDBConnection(ctx, r.cfg.DBRef)
	if err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("RepositoryItemReader '%s': failed to resolve database connection '%s'", r.name, r.cfg.DBRef), err, false, false)
	}
	r.conn = conn
	r.page = nil
	r.index = 0
	r.exhausted = false
	r.position, _ = ec.GetInt(r.countKey())
	if r.position > 0 {
		logger.Infof("RepositoryItemReader '%s': resuming at row %d.", r.name, r.position)
	}
	return nil
}

// Read returns the next row, fetching the next page when the current one is consumed.
func (r *RepositoryItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.conn == nil {
		return zero, exception.NewBatchErrorf("reader", "RepositoryItemReader '%s': reader not opened", r.name)
	}
	if r.index >= len(r.page) {
		if r.exhausted {
			return zero, port.ErrNoMoreItems
		}
		if err := r.fetch(ctx); err != nil {
			return zero, err
		}
		if len(r.page) == 0 {
			return zero, port.ErrNoMoreItems
		}
	}
	item := r.page[r.index]
	r.index++
	r.position++
	return item, nil
}

func (r *RepositoryItemReader[T]) fetch(ctx context.Context) error {
	var page []T
	q := dbadapter.Query{
		Conditions: r.cfg.Conditions,
		Where:      r.cfg.Where,
		Args:       r.cfg.Args,
		OrderBy:    r.cfg.OrderBy,
		Limit:      r.cfg.PageSize,
		Offset:     r.position,
	}
	if err := r.conn.ExecuteQueryPage(ctx, &page, q); err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("RepositoryItemReader '%s': failed to read page at offset %d", r.name, r.position), err, false, true)
	}
	logger.Debugf("RepositoryItemReader '%s': fetched %d rows at offset %d.", r.name, len(page), r.position)
	r.page = page
	r.index = 0
	r.exhausted = len(page) < r.cfg.PageSize
	return nil
}

func (r *RepositoryItemReader[T]) Update(ctx context.Context, ec model.ExecutionContext) error {
	ec.Put(r.countKey(), r.position)
	return nil
}

func (r *RepositoryItemReader[T]) Close(ctx context.Context) error {
	r.page = nil
	r.conn = nil
	return nil
}

var _ port.ItemReader[any] = (*RepositoryItemReader[any])(nil)
