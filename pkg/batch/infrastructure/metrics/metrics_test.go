package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	coremetrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
)

func finishedExecutions(t *testing.T) (*model.JobExecution, *model.StepExecution) {
	t.Helper()
	inst, err := model.NewJobInstance("metricsJob", model.NewJobParameters())
	require.NoError(t, err)
	je := model.NewJobExecution(inst)
	je.MarkAsStarted()
	se := model.NewStepExecution("metricsStep", je)
	se.MarkAsStarted()
	se.ReadCount = 3
	se.MarkAsCompleted()
	je.MarkAsCompleted("")
	return je, se
}

func TestPrometheusRecorder_CountsAndServes(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()
	je, se := finishedExecutions(t)

	r.RecordJobStart(ctx, je)
	r.RecordStepEnd(ctx, se)
	r.RecordItemRead(ctx, "metricsStep")
	r.RecordItemRead(ctx, "metricsStep")
	r.RecordItemWrite(ctx, "metricsStep", 5)
	r.RecordItemSkip(ctx, "metricsStep", "process")
	r.RecordChunkCommit(ctx, "metricsStep", 5)
	r.RecordLaunchRejected(ctx, "metricsJob", "already_running")
	r.RecordJobEnd(ctx, je)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.itemReadCount.WithLabelValues("metricsStep")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.itemWriteCount.WithLabelValues("metricsStep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.itemSkipCounter.WithLabelValues("metricsStep", "process")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.launchRejected.WithLabelValues("metricsJob", "already_running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("metricsJob", "COMPLETED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.jobsRunning.WithLabelValues("metricsJob")))

	srv := httptest.NewServer(NewAdminRouter(r.GetRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `batch_step_commit_total{step_name="metricsStep"} 1`)
}

func TestOtelMetricRecorder_RecordsThroughSDK(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewOtelMetricRecorder(mp.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()
	je, se := finishedExecutions(t)

	r.RecordJobStart(ctx, je)
	r.RecordItemWrite(ctx, "metricsStep", 4)
	r.RecordItemRead(ctx, "metricsStep")
	r.RecordStepEnd(ctx, se)
	r.RecordJobEnd(ctx, je)
	r.RecordDuration(ctx, "file_flush_duration", 10*time.Millisecond, map[string]string{"step": "metricsStep"})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(5), sums["batch.items"])
	assert.Equal(t, int64(1), sums["batch.job.executions"])
	assert.Equal(t, int64(1), sums["batch.step.executions"])
	assert.Equal(t, int64(0), sums["batch.job.running"])
}

func TestOtelTracer_NestsStepSpansAndRecordsErrors(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOtelTracer(tp)
	je, se := finishedExecutions(t)

	ctx, endJob := tracer.StartJobSpan(context.Background(), je)
	stepCtx, endStep := tracer.StartStepSpan(ctx, se)
	tracer.RecordEvent(stepCtx, "flow.transition", map[string]interface{}{"from": "a", "count": 2})
	tracer.RecordError(stepCtx, "writer", errors.New("disk full"))
	endStep()
	endJob()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	step, job := spans[0], spans[1]
	assert.Equal(t, "step metricsStep", step.Name())
	assert.Equal(t, "job metricsJob", job.Name())
	assert.Equal(t, job.SpanContext().SpanID(), step.Parent().SpanID())
	assert.Equal(t, codes.Error, step.Status().Code)

	var names []string
	for _, ev := range step.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "flow.transition")
	assert.Contains(t, names, "exception")
}

type countingRecorder struct {
	*coremetrics.NoOpMetricRecorder
	mu     sync.Mutex
	reads  int
	states []model.JobStatus
}

func (c *countingRecorder) RecordItemRead(ctx context.Context, stepName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
}

func (c *countingRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, execution.Status)
}

func TestAsyncMetricRecorder_DrainsOnCloseAndSnapshots(t *testing.T) {
	delegate := &countingRecorder{NoOpMetricRecorder: &coremetrics.NoOpMetricRecorder{}}
	r := NewAsyncMetricRecorder(16, delegate)
	je, _ := finishedExecutions(t)

	for i := 0; i < 5; i++ {
		r.RecordItemRead(context.Background(), "metricsStep")
	}
	r.RecordJobEnd(context.Background(), je)
	je.Status = model.BatchStatusFailed
	r.Close()
	r.RecordItemRead(context.Background(), "metricsStep")

	delegate.mu.Lock()
	defer delegate.mu.Unlock()
	assert.Equal(t, 5, delegate.reads)
	assert.Equal(t, []model.JobStatus{model.BatchStatusCompleted}, delegate.states)
}
