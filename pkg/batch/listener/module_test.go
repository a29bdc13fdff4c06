package listener_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/tasklet"
	inframetrics "github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/listener"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/listener/tracing"
)

type stepCounter struct {
	*metrics.NoOpMetricRecorder
	mu    sync.Mutex
	ended []string
}

func (c *stepCounter) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = append(c.ended, execution.StepName+":"+execution.Status.String())
}

type captureNotifier struct {
	notified []model.JobStatus
	err      error
}

func (n *captureNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error {
	n.notified = append(n.notified, execution.Status)
	return n.err
}

type fixture struct {
	repo     *inmemory.InMemoryJobRepository
	recorder *stepCounter
	notifier *captureNotifier
	spans    *tracetest.SpanRecorder
	tracer   metrics.Tracer
	defaults *listener.Defaults
}

func newFixture() *fixture {
	f := &fixture{
		repo:     inmemory.NewInMemoryJobRepository(),
		recorder: &stepCounter{NoOpMetricRecorder: &metrics.NoOpMetricRecorder{}},
		notifier: &captureNotifier{},
		spans:    tracetest.NewSpanRecorder(),
	}
	f.tracer = inframetrics.NewOtelTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans)))
	f.defaults = listener.NewDefaults(listener.DefaultsParams{
		Recorder: f.recorder,
		Tracer:   f.tracer,
		Notifier: f.notifier,
	})
	return f
}

func (f *fixture) run(t *testing.T, secondErr error, extra ...port.JobExecutionListener) *model.JobExecution {
	t.Helper()
	first := tasklet.NewTaskletStep("first", port.TaskletFunc(func(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
		return model.RepeatStatusFinished, nil
	}), f.repo, f.defaults.StepOptions()...)
	second := tasklet.NewTaskletStep("second", port.TaskletFunc(func(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
		return model.RepeatStatusFinished, secondErr
	}), f.repo, f.defaults.StepOptions()...)

	flow, err := runner.NewFlowBuilder("listenerJob").Start(first).Next(second).Build()
	require.NoError(t, err)
	job := runner.NewFlowJob(flow, f.repo, f.defaults.JobOptions(extra...)...)

	je, err := f.repo.CreateJobExecution(context.Background(), job.JobName(), model.NewJobParameters())
	require.NoError(t, err)
	_ = runner.NewSimpleJobRunner(f.repo, metrics.NewNoOpMetricRecorder(), f.tracer).Run(context.Background(), job, je)
	return je
}

func TestDefaults_NotifyRecordAndTrace(t *testing.T) {
	f := newFixture()
	signaler := listener.NewJobCompletionSignaler()

	je := f.run(t, nil, signaler)

	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, []model.JobStatus{model.BatchStatusCompleted}, f.notifier.notified)
	assert.Equal(t, []string{"first:COMPLETED", "second:COMPLETED"}, f.recorder.ended)

	select {
	case <-signaler.Done():
	default:
		t.Fatal("signaler channel not closed")
	}
	require.NotNil(t, signaler.Final())
	assert.Equal(t, je.ID, signaler.Final().ID)

	events := map[string][]string{}
	for _, span := range f.spans.Ended() {
		for _, ev := range span.Events() {
			events[span.Name()] = append(events[span.Name()], ev.Name)
		}
	}
	assert.Equal(t, []string{tracing.EventStepBefore, tracing.EventStepAfter}, events["step first"])
	assert.Contains(t, events["job listenerJob"], tracing.EventJobBefore)
	assert.Contains(t, events["job listenerJob"], tracing.EventJobAfter)
}

func TestDefaults_NotifierErrorKeepsStatus(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("smtp down")

	je := f.run(t, errors.New("boom"))

	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, []model.JobStatus{model.BatchStatusFailed}, f.notifier.notified)
	assert.Equal(t, []string{"first:COMPLETED", "second:FAILED"}, f.recorder.ended)
}

func TestJobCompletionSignaler_ClosesOnce(t *testing.T) {
	s := listener.NewJobCompletionSignaler()
	assert.Nil(t, s.Final())

	inst, err := model.NewJobInstance("job", model.NewJobParameters())
	require.NoError(t, err)
	je := model.NewJobExecution(inst)
	require.NoError(t, s.AfterJob(context.Background(), je))
	require.NoError(t, s.AfterJob(context.Background(), je))
	<-s.Done()
}
