// Package logging provides listeners that write job, step, chunk and item events to the
// batch logger.
package logging

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters)
	return nil
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s, Duration: %s",
		jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, jobExecution.Duration())
	for _, f := range jobExecution.Failures {
		logger.Warnf("JobExecutionListener: AfterJob - JobName: %s, Failure: %s", jobExecution.JobName, f)
	}
	return nil
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
	return nil
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Infof("StepExecutionListener: AfterStep - %s", stepExecution)
	return nil
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s", stepExecution.StepName)
	return nil
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d, Commit: %d",
		stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.CommitCount)
	return nil
}

func (l *LoggingChunkListener) AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	logger.Warnf("ChunkListener: AfterChunkError - StepName: %s, Rollback: %d, Error: %v",
		stepExecution.StepName, stepExecution.RollbackCount, err)
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)

// --- Item Listener ---

// LoggingItemListener logs item errors, skips and retries. Successful reads, processes
// and writes are logged at debug level only.
type LoggingItemListener struct{}

func NewLoggingItemListener() *LoggingItemListener {
	return &LoggingItemListener{}
}

func (l *LoggingItemListener) BeforeRead(ctx context.Context) {}

func (l *LoggingItemListener) AfterRead(ctx context.Context, item interface{}) {
	logger.Debugf("ItemReadListener: AfterRead - Item: %+v", item)
}

func (l *LoggingItemListener) OnReadError(ctx context.Context, err error) {
	logger.Errorf("ItemReadListener: OnReadError - %v", err)
}

func (l *LoggingItemListener) BeforeProcess(ctx context.Context, item interface{}) {}

func (l *LoggingItemListener) AfterProcess(ctx context.Context, item interface{}, result interface{}) {
	if result == nil {
		logger.Debugf("ItemProcessListener: AfterProcess - Item filtered: %+v", item)
	}
}

func (l *LoggingItemListener) OnProcessError(ctx context.Context, item interface{}, err error) {
	logger.Errorf("ItemProcessListener: OnProcessError - Item: %+v, Error: %v", item, err)
}

func (l *LoggingItemListener) BeforeWrite(ctx context.Context, items []interface{}) {}

func (l *LoggingItemListener) AfterWrite(ctx context.Context, items []interface{}) {
	logger.Debugf("ItemWriteListener: AfterWrite - Items count: %d", len(items))
}

func (l *LoggingItemListener) OnWriteError(ctx context.Context, items []interface{}, err error) {
	logger.Errorf("ItemWriteListener: OnWriteError - Items count: %d, Error: %v", len(items), err)
}

func (l *LoggingItemListener) OnSkipInRead(ctx context.Context, err error) {
	logger.Warnf("SkipListener: OnSkipInRead - Skipping item due to error: %v", err)
}

func (l *LoggingItemListener) OnSkipInProcess(ctx context.Context, item interface{}, err error) {
	logger.Warnf("SkipListener: OnSkipInProcess - Skipping item: %+v, Error: %v", item, err)
}

func (l *LoggingItemListener) OnSkipInWrite(ctx context.Context, item interface{}, err error) {
	logger.Warnf("SkipListener: OnSkipInWrite - Skipping item: %+v, Error: %v", item, err)
}

func (l *LoggingItemListener) OnRetry(ctx context.Context, item interface{}, attempt int, err error) {
	logger.Warnf("RetryItemListener: OnRetry - Attempt %d for item: %+v, Error: %v", attempt, item, err)
}

var (
	_ port.ItemReadListener    = (*LoggingItemListener)(nil)
	_ port.ItemProcessListener = (*LoggingItemListener)(nil)
	_ port.ItemWriteListener   = (*LoggingItemListener)(nil)
	_ port.SkipListener        = (*LoggingItemListener)(nil)
	_ port.RetryItemListener   = (*LoggingItemListener)(nil)
)
