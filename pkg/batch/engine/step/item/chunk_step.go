// Package item implements the chunk-oriented step: items are read and processed one at a
// time and written in chunks, one transaction per chunk.
package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/retry"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/skip"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

const writeSavepoint = "chunk_write"

// ReadCountKey returns the step context key holding the number of items consumed by the
// step across all its executions.
func ReadCountKey(stepName string) string {
	return stepName + ".read.count"
}

// ChunkStep is a chunk-oriented step. I is the type read, O the type written.
type ChunkStep[I, O any] struct {
	name      string
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
	chunkSize int
	repo      repository.JobRepository
	txManager tx.TransactionManager
	opts      step.Options
	lifecycle *step.Lifecycle
	// guardWrites is set when a write may be retried or split, which needs a savepoint.
	guardWrites bool
}

// contribution holds the counts of the chunk in flight. They reach the StepExecution only
// when the chunk commits.
type contribution struct {
	read, filtered, written             int
	readSkips, processSkips, writeSkips int
}

func (c *contribution) skips() int {
	return c.readSkips + c.processSkips + c.writeSkips
}

// NewChunkStep creates a chunk-oriented step.
//
// Parameters:
//   name: The step name.
//   reader: The item source.
//   processor: Transforms items; nil passes items through unchanged, which requires I to be
//     assignable to O.
//   writer: The item sink; it receives at most chunkSize items per call.
//   chunkSize: The commit interval (items read per transaction); values below 1 mean 1.
//   repo: Persists the StepExecution after every commit.
//   txManager: Provides one transaction per chunk.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	chunkSize int,
	repo repository.JobRepository,
	txManager tx.TransactionManager,
	opts ...step.Option,
) *ChunkStep[I, O] {
	if chunkSize < 1 {
		chunkSize = 1
	}
	o := step.NewOptions(opts...)
	return &ChunkStep[I, O]{
		name:        name,
		reader:      reader,
		processor:   processor,
		writer:      writer,
		chunkSize:   chunkSize,
		repo:        repo,
		txManager:   txManager,
		opts:        o,
		lifecycle:   step.NewLifecycle(name, "chunk", repo, o),
		guardWrites: !retry.IsNever(o.RetryPolicy) || !skip.IsNever(o.SkipPolicy),
	}
}

// StepName returns the step name.
func (s *ChunkStep[I, O]) StepName() string {
	return s.name
}

// ChunkSize returns the commit interval.
func (s *ChunkStep[I, O]) ChunkSize() int {
	return s.chunkSize
}

// Execute runs the chunk loop inside the step lifecycle.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, stepExecution *model.StepExecution) error {
	return s.lifecycle.Run(ctx, stepExecution, s.run)
}

func (s *ChunkStep[I, O]) run(ctx context.Context, se *model.StepExecution) (err error) {
	ec := se.ExecutionContext
	if err := s.reader.Open(ctx, ec); err != nil {
		return exception.NewStepFailure(s.name, "open", err)
	}
	if err := s.writer.Open(ctx, ec); err != nil {
		_ = s.reader.Close(ctx)
		return exception.NewStepFailure(s.name, "open", err)
	}
	defer func() {
		if closeErr := s.close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.Warnf("ChunkStep '%s': failed to close item streams: %v", s.name, closeErr)
			if err == nil {
				err = exception.NewStepFailure(s.name, "close", closeErr)
			}
		}
	}()

	consumed, _ := ec.GetInt(ReadCountKey(s.name))
	if consumed > 0 {
		logger.Infof("ChunkStep '%s' restarting after %d items.", s.name, consumed)
	}

	for chunk := 1; ; chunk++ {
		if ctx.Err() != nil {
			return step.ErrStopped
		}
		// A started chunk is finished even if a stop is requested meanwhile.
		eof, err := s.doChunk(withStopSignal(context.WithoutCancel(ctx), ctx), se, &consumed)
		if err != nil {
			return err
		}
		if eof {
			logger.Debugf("ChunkStep '%s': input exhausted after %d chunks.", s.name, chunk)
			return nil
		}
	}
}

// doChunk processes one chunk in its own transaction and persists the checkpoint after
// the commit. It reports whether the reader is exhausted.
func (s *ChunkStep[I, O]) doChunk(ctx context.Context, se *model.StepExecution, consumed *int) (bool, error) {
	t, err := s.txManager.Begin(ctx, s.txOptions()...)
	if err != nil {
		return false, exception.NewStepFailure(s.name, "commit", fmt.Errorf("failed to begin chunk transaction: %w", err))
	}
	txCtx := tx.WithTx(ctx, t)

	var c contribution
	outputs, eof, err := s.readChunk(txCtx, se, &c)
	if err == nil && len(outputs) > 0 {
		err = s.write(txCtx, se, t, outputs, &c)
	}
	if err != nil {
		s.rollback(txCtx, se, t, err)
		return false, err
	}

	// Checkpoint state goes into the step context before the commit; it is restored if the
	// commit fails so that a failed chunk never advances the restart position.
	previous := se.ExecutionContext.Copy()
	if err := s.updateStreams(txCtx, se, *consumed+c.read+c.readSkips); err != nil {
		se.ExecutionContext = previous
		s.rollback(txCtx, se, t, err)
		return false, exception.NewStepFailure(s.name, "commit", err)
	}
	if err := s.txManager.Commit(t); err != nil {
		se.ExecutionContext = previous
		se.RollbackCount++
		s.opts.MetricRecorder.RecordChunkRollback(ctx, s.name)
		s.afterChunkError(txCtx, se, err)
		return false, exception.NewStepFailure(s.name, "commit", err)
	}

	*consumed += c.read + c.readSkips
	s.apply(se, &c)
	s.opts.MetricRecorder.RecordChunkCommit(ctx, s.name, c.written)
	for _, l := range s.opts.ChunkListeners {
		if err := l.AfterChunk(ctx, se); err != nil {
			logger.Warnf("ChunkStep '%s': AfterChunk listener failed: %v", s.name, err)
		}
	}
	if err := s.repo.UpdateStepExecution(ctx, se); err != nil {
		return false, exception.NewStepFailure(s.name, "commit", err)
	}
	logger.Debugf("ChunkStep '%s': chunk committed. (read: %d, written: %d, filtered: %d)", s.name, c.read, c.written, c.filtered)
	return eof, nil
}

func (s *ChunkStep[I, O]) txOptions() []*sql.TxOptions {
	if s.opts.TxOptions == nil {
		return nil
	}
	return []*sql.TxOptions{s.opts.TxOptions}
}

// readChunk reads up to chunkSize items and processes them.
func (s *ChunkStep[I, O]) readChunk(ctx context.Context, se *model.StepExecution, c *contribution) ([]O, bool, error) {
	for _, l := range s.opts.ChunkListeners {
		if err := l.BeforeChunk(ctx, se); err != nil {
			return nil, false, exception.NewStepFailure(s.name, "listener", err)
		}
	}

	outputs := make([]O, 0, s.chunkSize)
	for c.read < s.chunkSize {
		in, eof, err := s.read(ctx, se, c)
		if err != nil {
			return nil, false, err
		}
		if eof {
			return outputs, true, nil
		}
		out, keep, err := s.process(ctx, se, in, c)
		if err != nil {
			return nil, false, err
		}
		if keep {
			outputs = append(outputs, out)
		}
	}
	return outputs, false, nil
}

// read returns the next item, or eof. Read failures are never retried: a reader may
// already have moved past the failed record, so the failure goes to the skip policy.
func (s *ChunkStep[I, O]) read(ctx context.Context, se *model.StepExecution, c *contribution) (I, bool, error) {
	var zero I
	for {
		for _, l := range s.opts.ReadListeners {
			l.BeforeRead(ctx)
		}
		item, err := s.reader.Read(ctx)
		if err == nil {
			c.read++
			s.opts.MetricRecorder.RecordItemRead(ctx, s.name)
			for _, l := range s.opts.ReadListeners {
				l.AfterRead(ctx, item)
			}
			return item, false, nil
		}
		if errors.Is(err, port.ErrNoMoreItems) || errors.Is(err, io.EOF) {
			return zero, true, nil
		}

		for _, l := range s.opts.ReadListeners {
			l.OnReadError(ctx, err)
		}
		if s.opts.SkipPolicy.ShouldSkip(err, se.SkipCount()+c.skips()) {
			c.readSkips++
			s.opts.MetricRecorder.RecordItemSkip(ctx, s.name, metrics.StageRead)
			logger.Warnf("ChunkStep '%s': read failure skipped: %v", s.name, err)
			for _, l := range s.opts.SkipListeners {
				l.OnSkipInRead(ctx, err)
			}
			continue
		}
		return zero, false, exception.NewStepFailure(s.name, "read", err)
	}
}

// process transforms an item. keep is false for a filtered or skipped item.
func (s *ChunkStep[I, O]) process(ctx context.Context, se *model.StepExecution, in I, c *contribution) (O, bool, error) {
	var zero O
	if s.processor == nil {
		out, ok := any(in).(O)
		if !ok {
			return zero, false, exception.NewStepFailure(s.name, "process",
				fmt.Errorf("item of type %T cannot be written without a processor", in))
		}
		return out, true, nil
	}

	for attempt := 1; ; attempt++ {
		for _, l := range s.opts.ProcessListeners {
			l.BeforeProcess(ctx, in)
		}
		out, err := s.processor.Process(ctx, in)
		if err == nil || errors.Is(err, port.ErrFilterItem) {
			if err != nil || isNil(out) {
				c.filtered++
				s.opts.MetricRecorder.RecordItemFilter(ctx, s.name)
				for _, l := range s.opts.ProcessListeners {
					l.AfterProcess(ctx, in, nil)
				}
				return zero, false, nil
			}
			s.opts.MetricRecorder.RecordItemProcess(ctx, s.name)
			for _, l := range s.opts.ProcessListeners {
				l.AfterProcess(ctx, in, out)
			}
			return out, true, nil
		}

		for _, l := range s.opts.ProcessListeners {
			l.OnProcessError(ctx, in, err)
		}
		if s.opts.RetryPolicy.ShouldRetry(err, attempt) {
			s.notifyRetry(ctx, metrics.StageProcess, in, attempt, err)
			continue
		}
		if s.opts.SkipPolicy.ShouldSkip(err, se.SkipCount()+c.skips()) {
			c.processSkips++
			s.opts.MetricRecorder.RecordItemSkip(ctx, s.name, metrics.StageProcess)
			logger.Warnf("ChunkStep '%s': process failure skipped: %v", s.name, err)
			for _, l := range s.opts.SkipListeners {
				l.OnSkipInProcess(ctx, in, err)
			}
			return zero, false, nil
		}
		return zero, false, exception.NewStepFailure(s.name, "process", err)
	}
}

// write hands the chunk to the writer. A write failure that may be skipped is resolved by
// writing the items one at a time and skipping the ones that fail.
func (s *ChunkStep[I, O]) write(ctx context.Context, se *model.StepExecution, t tx.Tx, items []O, c *contribution) error {
	for attempt := 1; ; attempt++ {
		err := s.writeItems(ctx, t, items)
		if err == nil {
			c.written += len(items)
			s.opts.MetricRecorder.RecordItemWrite(ctx, s.name, len(items))
			return nil
		}
		if s.opts.RetryPolicy.ShouldRetry(err, attempt) {
			s.notifyRetry(ctx, metrics.StageWrite, items, attempt, err)
			continue
		}
		if s.opts.SkipPolicy.ShouldSkip(err, se.SkipCount()+c.skips()) {
			logger.Warnf("ChunkStep '%s': chunk write failed, writing items one by one: %v", s.name, err)
			return s.scan(ctx, se, t, items, c)
		}
		return exception.NewStepFailure(s.name, "write", err)
	}
}

func (s *ChunkStep[I, O]) scan(ctx context.Context, se *model.StepExecution, t tx.Tx, items []O, c *contribution) error {
	for _, item := range items {
		err := s.writeItems(ctx, t, []O{item})
		if err == nil {
			c.written++
			s.opts.MetricRecorder.RecordItemWrite(ctx, s.name, 1)
			continue
		}
		if !s.opts.SkipPolicy.ShouldSkip(err, se.SkipCount()+c.skips()) {
			return exception.NewStepFailure(s.name, "write", err)
		}
		c.writeSkips++
		s.opts.MetricRecorder.RecordItemSkip(ctx, s.name, metrics.StageWrite)
		for _, l := range s.opts.SkipListeners {
			l.OnSkipInWrite(ctx, item, err)
		}
	}
	return nil
}

// writeItems calls the writer once, undoing its partial work on failure when a savepoint
// is available.
func (s *ChunkStep[I, O]) writeItems(ctx context.Context, t tx.Tx, items []O) error {
	generic := toInterfaces(items)
	for _, l := range s.opts.WriteListeners {
		l.BeforeWrite(ctx, generic)
	}

	guarded := false
	if s.guardWrites {
		if err := t.Savepoint(writeSavepoint); err != nil {
			logger.Debugf("ChunkStep '%s': savepoint unavailable: %v", s.name, err)
		} else {
			guarded = true
		}
	}

	if err := s.writer.Write(ctx, t, items); err != nil {
		if guarded {
			if rbErr := t.RollbackToSavepoint(writeSavepoint); rbErr != nil {
				err = multierror.Append(err, rbErr)
			}
		}
		for _, l := range s.opts.WriteListeners {
			l.OnWriteError(ctx, generic, err)
		}
		return err
	}
	for _, l := range s.opts.WriteListeners {
		l.AfterWrite(ctx, generic)
	}
	return nil
}

// updateStreams lets the reader and writer save their position, then records the step
// read count.
func (s *ChunkStep[I, O]) updateStreams(ctx context.Context, se *model.StepExecution, consumed int) error {
	if err := s.reader.Update(ctx, se.ExecutionContext); err != nil {
		return fmt.Errorf("failed to update reader state: %w", err)
	}
	if err := s.writer.Update(ctx, se.ExecutionContext); err != nil {
		return fmt.Errorf("failed to update writer state: %w", err)
	}
	se.ExecutionContext.Put(ReadCountKey(s.name), consumed)
	return nil
}

func (s *ChunkStep[I, O]) apply(se *model.StepExecution, c *contribution) {
	se.ReadCount += c.read
	se.FilterCount += c.filtered
	se.WriteCount += c.written
	se.ReadSkipCount += c.readSkips
	se.ProcessSkipCount += c.processSkips
	se.WriteSkipCount += c.writeSkips
	if c.read+c.readSkips > 0 {
		se.CommitCount++
	}
}

func (s *ChunkStep[I, O]) rollback(ctx context.Context, se *model.StepExecution, t tx.Tx, cause error) {
	if err := s.txManager.Rollback(t); err != nil {
		logger.Errorf("ChunkStep '%s': rollback failed: %v", s.name, err)
	}
	se.RollbackCount++
	s.opts.MetricRecorder.RecordChunkRollback(ctx, s.name)
	logger.Warnf("ChunkStep '%s': chunk rolled back: %v", s.name, cause)
	s.afterChunkError(ctx, se, cause)
}

func (s *ChunkStep[I, O]) afterChunkError(ctx context.Context, se *model.StepExecution, err error) {
	for _, l := range s.opts.ChunkListeners {
		l.AfterChunkError(ctx, se, err)
	}
}

func (s *ChunkStep[I, O]) notifyRetry(ctx context.Context, stage string, item interface{}, attempt int, err error) {
	logger.Warnf("ChunkStep '%s': %s failed (attempt %d), retrying: %v", s.name, stage, attempt, err)
	s.opts.MetricRecorder.RecordItemRetry(ctx, s.name, stage)
	for _, l := range s.opts.RetryListeners {
		l.OnRetry(ctx, item, attempt, err)
	}
	d := s.opts.RetryPolicy.Backoff(attempt)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stopRequested(ctx):
		logger.Debugf("ChunkStep '%s': stop requested, retrying %s without waiting.", s.name, stage)
	}
}

type stopKey struct{}

// withStopSignal carries the step's cancellation into the uncancellable chunk context.
func withStopSignal(chunkCtx context.Context, stepCtx context.Context) context.Context {
	return context.WithValue(chunkCtx, stopKey{}, stepCtx.Done())
}

// stopRequested returns the step's Done channel, or nil (blocks forever) outside a chunk.
func stopRequested(ctx context.Context) <-chan struct{} {
	done, _ := ctx.Value(stopKey{}).(<-chan struct{})
	return done
}

func (s *ChunkStep[I, O]) close(ctx context.Context) error {
	var result *multierror.Error
	if err := s.reader.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("reader: %w", err))
	}
	if err := s.writer.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("writer: %w", err))
	}
	return result.ErrorOrNil()
}

func toInterfaces[T any](items []T) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// isNil reports whether v is a nil interface, pointer, map, slice, channel or function.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
