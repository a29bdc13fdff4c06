package item_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
)

func TestChunkBuffer_OnlyCommittedChunksReachCommit(t *testing.T) {
	ctx := context.Background()
	tm := tx.NewResourcelessTransactionManager()
	var committed [][]string
	buf := item.NewChunkBuffer(func(items []string) error {
		committed = append(committed, items)
		return nil
	})

	t1, err := tm.Begin(ctx)
	require.NoError(t, err)
	buf.Stage(t1, []string{"a"})
	buf.Stage(t1, []string{"b", "c"})
	assert.Equal(t, 3, buf.Pending())
	require.NoError(t, tm.Commit(t1))

	t2, err := tm.Begin(ctx)
	require.NoError(t, err)
	buf.Stage(t2, []string{"lost"})
	require.NoError(t, tm.Rollback(t2))
	assert.Zero(t, buf.Pending())

	t3, err := tm.Begin(ctx)
	require.NoError(t, err)
	buf.Stage(t3, []string{"d"})
	require.NoError(t, tm.Commit(t3))

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, committed)
}

func TestChunkBuffer_CommitErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	tm := tx.NewResourcelessTransactionManager()
	buf := item.NewChunkBuffer(func(items []int) error { return errors.New("disk full") })

	t1, err := tm.Begin(ctx)
	require.NoError(t, err)
	buf.Stage(t1, []int{1})
	assert.ErrorContains(t, tm.Commit(t1), "disk full")
	_, _, rolledBack := tm.Stats()
	assert.Equal(t, int64(1), rolledBack)
	assert.Zero(t, buf.Pending())
}

func TestListItemReader_ResumesFromSavedPosition(t *testing.T) {
	ctx := context.Background()
	ec := model.NewExecutionContext()
	r := item.NewListItemReader("numbers", []int{1, 2, 3})
	require.NoError(t, r.Open(ctx, ec))
	v, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, r.Update(ctx, ec))
	require.NoError(t, r.Close(ctx))

	restarted := item.NewListItemReader("numbers", []int{1, 2, 3})
	require.NoError(t, restarted.Open(ctx, ec))
	var rest []int
	for {
		v, err := restarted.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		require.NoError(t, err)
		rest = append(rest, v)
	}
	assert.Equal(t, []int{2, 3}, rest)

	out, err := item.NewPassThroughItemProcessor[int]().Process(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}
