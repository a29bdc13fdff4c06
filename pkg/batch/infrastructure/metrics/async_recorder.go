package metrics

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// Metric event type constants
const (
	eventJobStart       = "job_start"
	eventJobEnd         = "job_end"
	eventStepStart      = "step_start"
	eventStepEnd        = "step_end"
	eventItemRead       = "item_read"
	eventItemProcess    = "item_process"
	eventItemFilter     = "item_filter"
	eventItemWrite      = "item_write"
	eventItemSkip       = "item_skip"
	eventItemRetry      = "item_retry"
	eventChunkCommit    = "chunk_commit"
	eventChunkRollback  = "chunk_rollback"
	eventLaunchRejected = "launch_rejected"
	eventDuration       = "duration"
)

// metricEvent is one recorder call queued for the worker goroutine.
type metricEvent struct {
	kind          string
	ctx           context.Context
	jobExecution  *model.JobExecution
	stepExecution *model.StepExecution
	name          string // step, job or operation name
	count         int
	reason        string
	duration      time.Duration
	tags          map[string]string
}

// AsyncMetricRecorder queues recorder calls on a buffered channel and replays them on a
// single worker goroutine, so a slow backend never blocks a chunk.
//
// Executions are snapshotted when queued. A full queue drops the event with a warning.
type AsyncMetricRecorder struct {
	events   chan metricEvent
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	delegate metrics.MetricRecorder
}

// NewAsyncMetricRecorder starts the worker. bufferSize <= 0 uses 100.
func NewAsyncMetricRecorder(bufferSize int, delegate metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		events:   make(chan metricEvent, bufferSize),
		stopCh:   make(chan struct{}),
		delegate: delegate,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: worker started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.events:
			r.dispatch(ev)
		case <-r.stopCh:
			remaining := len(r.events)
			for i := 0; i < remaining; i++ {
				r.dispatch(<-r.events)
			}
			logger.Debugf("AsyncMetricRecorder: worker stopped. Drained %d events.", remaining)
			return
		}
	}
}

func (r *AsyncMetricRecorder) dispatch(ev metricEvent) {
	ctx := ev.ctx
	switch ev.kind {
	case eventJobStart:
		r.delegate.RecordJobStart(ctx, ev.jobExecution)
	case eventJobEnd:
		r.delegate.RecordJobEnd(ctx, ev.jobExecution)
	case eventStepStart:
		r.delegate.RecordStepStart(ctx, ev.stepExecution)
	case eventStepEnd:
		r.delegate.RecordStepEnd(ctx, ev.stepExecution)
	case eventItemRead:
		r.delegate.RecordItemRead(ctx, ev.name)
	case eventItemProcess:
		r.delegate.RecordItemProcess(ctx, ev.name)
	case eventItemFilter:
		r.delegate.RecordItemFilter(ctx, ev.name)
	case eventItemWrite:
		r.delegate.RecordItemWrite(ctx, ev.name, ev.count)
	case eventItemSkip:
		r.delegate.RecordItemSkip(ctx, ev.name, ev.reason)
	case eventItemRetry:
		r.delegate.RecordItemRetry(ctx, ev.name, ev.reason)
	case eventChunkCommit:
		r.delegate.RecordChunkCommit(ctx, ev.name, ev.count)
	case eventChunkRollback:
		r.delegate.RecordChunkRollback(ctx, ev.name)
	case eventLaunchRejected:
		r.delegate.RecordLaunchRejected(ctx, ev.name, ev.reason)
	case eventDuration:
		r.delegate.RecordDuration(ctx, ev.name, ev.duration, ev.tags)
	default:
		logger.Warnf("AsyncMetricRecorder: unknown event type: %s", ev.kind)
	}
}

// Close stops the worker after draining the queue. Events sent after Close are dropped.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

func (r *AsyncMetricRecorder) send(ctx context.Context, ev metricEvent) {
	ev.ctx = context.WithoutCancel(ctx)
	select {
	case <-r.stopCh:
		return
	default:
	}
	select {
	case r.events <- ev:
	default:
		logger.Warnf("AsyncMetricRecorder: queue is full, %s event for '%s' discarded.", ev.kind, ev.name)
	}
}

func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.send(ctx, metricEvent{kind: eventJobStart, jobExecution: execution.Snapshot(), name: execution.JobName})
}

func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.send(ctx, metricEvent{kind: eventJobEnd, jobExecution: execution.Snapshot(), name: execution.JobName})
}

func (r *AsyncMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.send(ctx, metricEvent{kind: eventStepStart, stepExecution: snapshotStep(execution), name: execution.StepName})
}

func (r *AsyncMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	r.send(ctx, metricEvent{kind: eventStepEnd, stepExecution: snapshotStep(execution), name: execution.StepName})
}

func (r *AsyncMetricRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.send(ctx, metricEvent{kind: eventItemRead, name: stepName})
}

func (r *AsyncMetricRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.send(ctx, metricEvent{kind: eventItemProcess, name: stepName})
}

func (r *AsyncMetricRecorder) RecordItemFilter(ctx context.Context, stepName string) {
	r.send(ctx, metricEvent{kind: eventItemFilter, name: stepName})
}

func (r *AsyncMetricRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.send(ctx, metricEvent{kind: eventItemWrite, name: stepName, count: count})
}

func (r *AsyncMetricRecorder) RecordItemSkip(ctx context.Context, stepName string, stage string) {
	r.send(ctx, metricEvent{kind: eventItemSkip, name: stepName, reason: stage})
}

func (r *AsyncMetricRecorder) RecordItemRetry(ctx context.Context, stepName string, stage string) {
	r.send(ctx, metricEvent{kind: eventItemRetry, name: stepName, reason: stage})
}

func (r *AsyncMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.send(ctx, metricEvent{kind: eventChunkCommit, name: stepName, count: count})
}

func (r *AsyncMetricRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.send(ctx, metricEvent{kind: eventChunkRollback, name: stepName})
}

func (r *AsyncMetricRecorder) RecordLaunchRejected(ctx context.Context, jobName string, reason string) {
	r.send(ctx, metricEvent{kind: eventLaunchRejected, name: jobName, reason: reason})
}

func (r *AsyncMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.send(ctx, metricEvent{kind: eventDuration, name: name, duration: duration, tags: tags})
}

// snapshotStep detaches a StepExecution from the running step. Only the job name of the
// owning execution is kept.
func snapshotStep(se *model.StepExecution) *model.StepExecution {
	cp := se.Snapshot()
	if se.JobExecution != nil {
		cp.JobExecution = &model.JobExecution{ID: se.JobExecution.ID, JobName: se.JobExecution.JobName}
	}
	return cp
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)
