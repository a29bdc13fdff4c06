package item_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/item"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/retry"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/skip"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// sliceReader reads 1..n and saves its position under "numbers.index".
type sliceReader struct {
	n     int
	index int
}

func (r *sliceReader) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.index, _ = ec.GetInt("numbers.index")
	return nil
}

func (r *sliceReader) Read(ctx context.Context) (int, error) {
	if r.index >= r.n {
		return 0, port.ErrNoMoreItems
	}
	r.index++
	return r.index, nil
}

func (r *sliceReader) Update(ctx context.Context, ec model.ExecutionContext) error {
	ec.Put("numbers.index", r.index)
	return nil
}

func (r *sliceReader) Close(ctx context.Context) error { return nil }

// recordingWriter makes items visible only when the chunk transaction commits.
type recordingWriter struct {
	failOn    map[int]error
	calls     int
	sizes     []int
	committed []int
}

func (w *recordingWriter) Open(ctx context.Context, ec model.ExecutionContext) error { return nil }

func (w *recordingWriter) Write(ctx context.Context, t tx.Tx, items []int) error {
	w.calls++
	w.sizes = append(w.sizes, len(items))
	if err, ok := w.failOn[w.calls]; ok {
		return err
	}
	batch := append([]int(nil), items...)
	t.BeforeCommit(func() error {
		w.committed = append(w.committed, batch...)
		return nil
	})
	return nil
}

func (w *recordingWriter) Update(ctx context.Context, ec model.ExecutionContext) error { return nil }
func (w *recordingWriter) Close(ctx context.Context) error                            { return nil }

type processorFunc func(ctx context.Context, item int) (int, error)

func (f processorFunc) Process(ctx context.Context, item int) (int, error) { return f(ctx, item) }

func newStepExecution(t *testing.T, repo *inmemory.InMemoryJobRepository, name string) *model.StepExecution {
	t.Helper()
	ctx := context.Background()
	p := model.NewJobParameters()
	p.PutString("test", t.Name())
	je, err := repo.CreateJobExecution(ctx, "chunkJob", p)
	require.NoError(t, err)
	se := model.NewStepExecution(name, je)
	require.NoError(t, repo.SaveStepExecution(ctx, se))
	return se
}

func TestChunkStep_WriterCallsAreCeilOfInput(t *testing.T) {
	cases := []struct{ items, chunk int }{
		{12, 5}, {10, 5}, {1, 1}, {3, 10}, {0, 4}, {7, 1},
	}
	for _, tc := range cases {
		repo := inmemory.NewInMemoryJobRepository()
		writer := &recordingWriter{}
		s := item.NewChunkStep[int, int]("count", &sliceReader{n: tc.items}, nil, writer, tc.chunk, repo, tx.NewResourcelessTransactionManager())
		se := newStepExecution(t, repo, "count")

		require.NoError(t, s.Execute(context.Background(), se))

		expected := (tc.items + tc.chunk - 1) / tc.chunk
		assert.Equal(t, expected, writer.calls, "items=%d chunk=%d", tc.items, tc.chunk)
		for _, size := range writer.sizes {
			assert.LessOrEqual(t, size, tc.chunk)
		}
		assert.Len(t, writer.committed, tc.items)
		assert.Equal(t, model.BatchStatusCompleted, se.Status)
		assert.Equal(t, tc.items, se.ReadCount)
		assert.Equal(t, tc.items, se.WriteCount)
		assert.Equal(t, expected, se.CommitCount)
	}
}

func TestChunkStep_FailedWriteRollsBackOnlyThatChunk(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	writer := &recordingWriter{failOn: map[int]error{2: errors.New("disk full")}}
	s := item.NewChunkStep[int, int]("load", &sliceReader{n: 12}, nil, writer, 5, repo, tx.NewResourcelessTransactionManager())
	se := newStepExecution(t, repo, "load")

	err := s.Execute(ctx, se)

	var failure *exception.StepFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "load", failure.StepName)
	assert.Equal(t, "write", failure.Stage)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, writer.committed)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, model.ExitStatusFailed, se.ExitStatus)
	assert.Equal(t, 5, se.WriteCount)
	assert.Equal(t, 1, se.CommitCount)
	assert.Equal(t, 1, se.RollbackCount)

	consumed, ok := se.ExecutionContext.GetInt(item.ReadCountKey("load"))
	require.True(t, ok)
	assert.Equal(t, 5, consumed)

	stored, err := repo.FindStepExecutionByID(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, stored.Status)
	index, _ := stored.ExecutionContext.GetInt("numbers.index")
	assert.Equal(t, 5, index)
}

func TestChunkStep_RestartResumesAfterLastCommit(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	failing := &recordingWriter{failOn: map[int]error{2: errors.New("disk full")}}
	first := newStepExecution(t, repo, "load")
	s := item.NewChunkStep[int, int]("load", &sliceReader{n: 12}, nil, failing, 5, repo, tx.NewResourcelessTransactionManager())
	require.Error(t, s.Execute(ctx, first))

	writer := &recordingWriter{}
	s = item.NewChunkStep[int, int]("load", &sliceReader{n: 12}, nil, writer, 5, repo, tx.NewResourcelessTransactionManager())
	second := model.NewStepExecution("load", first.JobExecution)
	second.ExecutionContext = first.ExecutionContext.Copy()
	require.NoError(t, repo.SaveStepExecution(ctx, second))

	require.NoError(t, s.Execute(ctx, second))
	assert.Equal(t, []int{6, 7, 8, 9, 10, 11, 12}, writer.committed)
	assert.Equal(t, 7, second.ReadCount)
	consumed, _ := second.ExecutionContext.GetInt(item.ReadCountKey("load"))
	assert.Equal(t, 12, consumed)
}

func TestChunkStep_FilterAndSkip(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	writer := &recordingWriter{}
	bad := exception.NewBatchError("processor", "bad item", nil, true, false)
	processor := processorFunc(func(ctx context.Context, n int) (int, error) {
		switch {
		case n == 3:
			return 0, bad
		case n%2 == 0:
			return 0, port.ErrFilterItem
		}
		return n * 10, nil
	})
	s := item.NewChunkStep[int, int]("filter", &sliceReader{n: 7}, processor, writer, 5, repo,
		tx.NewResourcelessTransactionManager(), step.WithSkipPolicy(skip.NewLimitPolicy(1, nil)))
	se := newStepExecution(t, repo, "filter")

	require.NoError(t, s.Execute(context.Background(), se))
	assert.Equal(t, []int{10, 50, 70}, writer.committed)
	assert.Equal(t, 3, se.FilterCount)
	assert.Equal(t, 1, se.ProcessSkipCount)
	assert.Equal(t, 7, se.ReadCount)
	assert.Equal(t, 3, se.WriteCount)
}

func TestChunkStep_SkipLimitExceededFails(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	bad := exception.NewBatchError("processor", "bad item", nil, true, false)
	processor := processorFunc(func(ctx context.Context, n int) (int, error) {
		if n <= 2 {
			return 0, bad
		}
		return n, nil
	})
	s := item.NewChunkStep[int, int]("limit", &sliceReader{n: 4}, processor, &recordingWriter{}, 5, repo,
		tx.NewResourcelessTransactionManager(), step.WithSkipPolicy(skip.NewLimitPolicy(1, nil)))
	se := newStepExecution(t, repo, "limit")

	var failure *exception.StepFailure
	require.ErrorAs(t, s.Execute(context.Background(), se), &failure)
	assert.Equal(t, "process", failure.Stage)
}

func TestChunkStep_RetriesWrite(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	flaky := exception.NewBatchError("writer", "deadlock", nil, false, true)
	writer := &recordingWriter{failOn: map[int]error{1: flaky}}
	s := item.NewChunkStep[int, int]("retry", &sliceReader{n: 3}, nil, writer, 5, repo,
		tx.NewResourcelessTransactionManager(), step.WithRetryPolicy(retry.NewSimplePolicy(3, nil)))
	se := newStepExecution(t, repo, "retry")

	require.NoError(t, s.Execute(context.Background(), se))
	assert.Equal(t, 2, writer.calls)
	assert.Equal(t, []int{1, 2, 3}, writer.committed)
}

type stopAfterFirstChunk struct {
	cancel context.CancelFunc
}

func (l *stopAfterFirstChunk) BeforeChunk(ctx context.Context, se *model.StepExecution) error {
	return nil
}

func (l *stopAfterFirstChunk) AfterChunk(ctx context.Context, se *model.StepExecution) error {
	l.cancel()
	return nil
}

func (l *stopAfterFirstChunk) AfterChunkError(ctx context.Context, se *model.StepExecution, err error) {
}

func TestChunkStep_StopFinishesCurrentChunk(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	writer := &recordingWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := item.NewChunkStep[int, int]("stop", &sliceReader{n: 12}, nil, writer, 5, repo,
		tx.NewResourcelessTransactionManager(), step.WithListener(&stopAfterFirstChunk{cancel: cancel}))
	se := newStepExecution(t, repo, "stop")

	require.NoError(t, s.Execute(ctx, se))
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, writer.committed)

	stored, err := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, stored.Status)
}

type failingBeforeStep struct{}

func (failingBeforeStep) BeforeStep(ctx context.Context, se *model.StepExecution) error {
	return errors.New("not ready")
}

func (failingBeforeStep) AfterStep(ctx context.Context, se *model.StepExecution) error { return nil }

func TestChunkStep_BeforeStepFailurePreventsBody(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	writer := &recordingWriter{}
	s := item.NewChunkStep[int, int]("guarded", &sliceReader{n: 3}, nil, writer, 5, repo,
		tx.NewResourcelessTransactionManager(), step.WithListener(failingBeforeStep{}))
	se := newStepExecution(t, repo, "guarded")

	var failure *exception.StepFailure
	require.ErrorAs(t, s.Execute(context.Background(), se), &failure)
	assert.Equal(t, "listener", failure.Stage)
	assert.Zero(t, writer.calls)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
}

// advancingReader reads 1..n and fails on the items in failOn after it has already moved
// past them, the way a line reader does when a record does not parse.
type advancingReader struct {
	n      int
	failOn map[int]error
	index  int
}

func (r *advancingReader) Open(ctx context.Context, ec model.ExecutionContext) error { return nil }

func (r *advancingReader) Read(ctx context.Context) (int, error) {
	if r.index >= r.n {
		return 0, port.ErrNoMoreItems
	}
	r.index++
	if err, ok := r.failOn[r.index]; ok {
		return 0, err
	}
	return r.index, nil
}

func (r *advancingReader) Update(ctx context.Context, ec model.ExecutionContext) error { return nil }
func (r *advancingReader) Close(ctx context.Context) error                            { return nil }

func acceptAll(error) bool { return true }

func TestChunkStep_ReadFailureIsNotRetried(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	flaky := exception.NewBatchError("reader", "malformed line", nil, false, true)
	writer := &recordingWriter{}
	reader := &advancingReader{n: 5, failOn: map[int]error{3: flaky}}
	s := item.NewChunkStep[int, int]("lines", reader, nil, writer, 5, repo,
		tx.NewResourcelessTransactionManager(), step.WithRetryPolicy(retry.NewSimplePolicy(3, acceptAll)))
	se := newStepExecution(t, repo, "lines")

	var failure *exception.StepFailure
	require.ErrorAs(t, s.Execute(context.Background(), se), &failure)
	assert.Equal(t, "read", failure.Stage)
	assert.Empty(t, writer.committed)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
}

func TestChunkStep_ReadFailureGoesToSkipPolicy(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	flaky := exception.NewBatchError("reader", "malformed line", nil, false, true)
	writer := &recordingWriter{}
	reader := &advancingReader{n: 5, failOn: map[int]error{3: flaky}}
	s := item.NewChunkStep[int, int]("lines", reader, nil, writer, 5, repo,
		tx.NewResourcelessTransactionManager(),
		step.WithRetryPolicy(retry.NewSimplePolicy(3, acceptAll)),
		step.WithSkipPolicy(skip.NewLimitPolicy(1, skip.Classifier(acceptAll))))
	se := newStepExecution(t, repo, "lines")

	require.NoError(t, s.Execute(context.Background(), se))
	assert.Equal(t, []int{1, 2, 4, 5}, writer.committed)
	assert.Equal(t, 4, se.ReadCount)
	assert.Equal(t, 1, se.ReadSkipCount)
}

// stopOnRetry requests a stop as soon as a retry is announced.
type stopOnRetry struct {
	cancel context.CancelFunc
}

func (l *stopOnRetry) OnRetry(ctx context.Context, item interface{}, attempt int, err error) {
	l.cancel()
}

func TestChunkStep_StopCutsRetryBackoffShort(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	flaky := exception.NewBatchError("writer", "deadlock", nil, false, true)
	writer := &recordingWriter{failOn: map[int]error{1: flaky}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	policy := retry.NewSimplePolicy(3, nil, retry.WithExponentialBackoff(time.Hour, 2, time.Hour))
	s := item.NewChunkStep[int, int]("backoff", &sliceReader{n: 12}, nil, writer, 5, repo,
		tx.NewResourcelessTransactionManager(), step.WithRetryPolicy(policy),
		step.WithListener(&stopOnRetry{cancel: cancel}))
	se := newStepExecution(t, repo, "backoff")

	done := make(chan error, 1)
	go func() { done <- s.Execute(ctx, se) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("step kept waiting for the retry backoff after a stop request")
	}
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, writer.committed)
}
