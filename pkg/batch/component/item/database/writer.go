package database

import (
	"context"
	"fmt"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// WriterConfig configures a RepositoryItemWriter.
type WriterConfig struct {
	// Table is the target table. Empty uses the model's table.
	Table string
	// ConflictColumns identify an existing row, typically the primary key.
	ConflictColumns []string
	// UpdateColumns are overwritten when a row already exists. Empty makes a conflicting
	// row a no-op.
	UpdateColumns []string
	// BatchSize splits a chunk into several statements. Zero writes the chunk at once.
	BatchSize int
}

// RepositoryItemWriter upserts each chunk through the chunk transaction, so the rows
// commit or roll back with the chunk.
type RepositoryItemWriter[T any] struct {
	name string
	cfg  WriterConfig
}

// NewRepositoryItemWriter creates a writer.
func NewRepositoryItemWriter[T any](name string, cfg WriterConfig) *RepositoryItemWriter[T] {
	return &RepositoryItemWriter[T]{name: name, cfg: cfg}
}

func (w *RepositoryItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	logger.Debugf("RepositoryItemWriter '%s': Opened.", w.name)
	return nil
}

func (w *RepositoryItemWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	size := w.cfg.BatchSize
	if size <= 0 {
		size = len(items)
	}
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[i:end]
		if _, err := t.ExecuteUpsert(ctx, &batch, w.cfg.Table, w.cfg.ConflictColumns, w.cfg.UpdateColumns); err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("RepositoryItemWriter '%s': failed to upsert %d rows (start index %d)", w.name, len(batch), i), err, false, false)
		}
	}
	logger.Debugf("RepositoryItemWriter '%s': wrote %d rows.", w.name, len(items))
	return nil
}

func (w *RepositoryItemWriter[T]) Update(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

func (w *RepositoryItemWriter[T]) Close(ctx context.Context) error {
	return nil
}

var _ port.ItemWriter[any] = (*RepositoryItemWriter[any])(nil)
