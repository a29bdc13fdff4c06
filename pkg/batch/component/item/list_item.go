package item

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// ListItemReader reads the items of an in-memory slice. Its position is saved under
// "<name>.position" so a restarted step continues after the last committed item.
type ListItemReader[T any] struct {
	name     string
	items    []T
	position int
}

// NewListItemReader creates a reader over items. The slice is not copied.
func NewListItemReader[T any](name string, items []T) *ListItemReader[T] {
	return &ListItemReader[T]{name: name, items: items}
}

func (r *ListItemReader[T]) positionKey() string {
	return r.name + ".position"
}

func (r *ListItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.position, _ = ec.GetInt(r.positionKey())
	if r.position > 0 {
		logger.Debugf("ListItemReader '%s': resuming at item %d of %d.", r.name, r.position, len(r.items))
	}
	return nil
}

func (r *ListItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.position >= len(r.items) {
		return zero, port.ErrNoMoreItems
	}
	item := r.items[r.position]
	r.position++
	return item, nil
}

func (r *ListItemReader[T]) Update(ctx context.Context, ec model.ExecutionContext) error {
	ec.Put(r.positionKey(), r.position)
	return nil
}

func (r *ListItemReader[T]) Close(ctx context.Context) error {
	return nil
}

var _ port.ItemReader[any] = (*ListItemReader[any])(nil)
