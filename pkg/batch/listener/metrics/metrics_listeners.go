// Package metrics bridges step, chunk and item listener callbacks to a
// metrics.MetricRecorder, for steps built without step.WithMetricRecorder.
package metrics

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
)

// MetricsStepListener records step boundaries, chunk outcomes and item events.
// Register it with step.WithListener; it implements every step-level listener interface.
type MetricsStepListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsStepListener(recorder metrics.MetricRecorder) *MetricsStepListener {
	return &MetricsStepListener{recorder: recorder}
}

func (l *MetricsStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) error {
	l.recorder.RecordStepStart(ctx, stepExecution)
	return nil
}

func (l *MetricsStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) error {
	l.recorder.RecordStepEnd(ctx, stepExecution)
	return nil
}

func (l *MetricsStepListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

func (l *MetricsStepListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) error {
	l.recorder.RecordChunkCommit(ctx, stepExecution.StepName, 1)
	return nil
}

func (l *MetricsStepListener) AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	l.recorder.RecordChunkRollback(ctx, stepExecution.StepName)
}

func (l *MetricsStepListener) BeforeRead(ctx context.Context) {}

func (l *MetricsStepListener) AfterRead(ctx context.Context, item interface{}) {
	l.recorder.RecordItemRead(ctx, stepName(ctx))
}

func (l *MetricsStepListener) OnReadError(ctx context.Context, err error) {}

func (l *MetricsStepListener) BeforeProcess(ctx context.Context, item interface{}) {}

func (l *MetricsStepListener) AfterProcess(ctx context.Context, item interface{}, result interface{}) {
	if result == nil {
		l.recorder.RecordItemFilter(ctx, stepName(ctx))
		return
	}
	l.recorder.RecordItemProcess(ctx, stepName(ctx))
}

func (l *MetricsStepListener) OnProcessError(ctx context.Context, item interface{}, err error) {}

func (l *MetricsStepListener) BeforeWrite(ctx context.Context, items []interface{}) {}

func (l *MetricsStepListener) AfterWrite(ctx context.Context, items []interface{}) {
	l.recorder.RecordItemWrite(ctx, stepName(ctx), len(items))
}

func (l *MetricsStepListener) OnWriteError(ctx context.Context, items []interface{}, err error) {}

func (l *MetricsStepListener) OnSkipInRead(ctx context.Context, err error) {
	l.recorder.RecordItemSkip(ctx, stepName(ctx), metrics.StageRead)
}

func (l *MetricsStepListener) OnSkipInProcess(ctx context.Context, item interface{}, err error) {
	l.recorder.RecordItemSkip(ctx, stepName(ctx), metrics.StageProcess)
}

func (l *MetricsStepListener) OnSkipInWrite(ctx context.Context, item interface{}, err error) {
	l.recorder.RecordItemSkip(ctx, stepName(ctx), metrics.StageWrite)
}

// stepName returns the name of the step running on ctx. Item callbacks carry no
// StepExecution, so the one stored by the step lifecycle is used.
func stepName(ctx context.Context) string {
	if se := port.GetStepExecutionFromContext(ctx); se != nil {
		return se.StepName
	}
	return ""
}

var (
	_ port.StepExecutionListener = (*MetricsStepListener)(nil)
	_ port.ChunkListener         = (*MetricsStepListener)(nil)
	_ port.ItemReadListener      = (*MetricsStepListener)(nil)
	_ port.ItemProcessListener   = (*MetricsStepListener)(nil)
	_ port.ItemWriteListener     = (*MetricsStepListener)(nil)
	_ port.SkipListener          = (*MetricsStepListener)(nil)
)
