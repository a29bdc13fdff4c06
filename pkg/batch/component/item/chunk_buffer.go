package item

import (
	"sync"

	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
)

// ChunkBuffer stages the items written inside a chunk transaction. Staged items are handed
// to the commit function when the transaction commits and are dropped when it rolls back,
// so writers without transactional storage only ever see committed chunks.
type ChunkBuffer[T any] struct {
	mu      sync.Mutex
	commit  func(items []T) error
	active  tx.Tx
	pending []T
}

// NewChunkBuffer creates a buffer that calls commit with the items of every committed
// chunk. commit runs before the underlying commit; its error rolls the chunk back.
func NewChunkBuffer[T any](commit func(items []T) error) *ChunkBuffer[T] {
	return &ChunkBuffer[T]{commit: commit}
}

// Stage adds items to the chunk of transaction t.
func (b *ChunkBuffer[T]) Stage(t tx.Tx, items []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != t {
		b.active = t
		b.pending = nil
		t.BeforeCommit(b.flush)
		t.AfterRollback(b.discard)
	}
	b.pending = append(b.pending, items...)
}

// Pending returns the number of staged items.
func (b *ChunkBuffer[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Staged returns a copy of the staged items.
func (b *ChunkBuffer[T]) Staged() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), b.pending...)
}

func (b *ChunkBuffer[T]) flush() error {
	b.mu.Lock()
	items := b.pending
	b.pending = nil
	b.active = nil
	b.mu.Unlock()
	if len(items) == 0 {
		return nil
	}
	return b.commit(items)
}

func (b *ChunkBuffer[T]) discard() {
	b.mu.Lock()
	b.pending = nil
	b.active = nil
	b.mu.Unlock()
}
