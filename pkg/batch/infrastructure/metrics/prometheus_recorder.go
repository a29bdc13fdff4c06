package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec
	jobsRunning        *prometheus.GaugeVec
	launchRejected     *prometheus.CounterVec

	// Step Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec

	// Item and chunk Metrics
	itemReadCount      *prometheus.CounterVec
	itemProcessCount   *prometheus.CounterVec
	itemFilterCount    *prometheus.CounterVec
	itemWriteCount     *prometheus.CounterVec
	itemSkipCounter    *prometheus.CounterVec
	itemRetryCounter   *prometheus.CounterVec
	chunkCommitCount   *prometheus.CounterVec
	chunkRollbackCount *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with its own registry, which also
// carries the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status", "exit_status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Total number of batch job executions by terminal status.",
		}, []string{"job_name", "status"}),
		jobsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_job_running",
			Help: "Number of running job executions.",
		}, []string{"job_name"}),
		launchRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_launch_rejected_total",
			Help: "Total launches rejected before any execution ran.",
		}, []string{"job_name", "reason"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_step_duration_seconds",
			Help:    "Duration of batch step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "step_name", "status", "exit_status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_status_total",
			Help: "Total number of batch step executions by terminal status.",
		}, []string{"job_name", "step_name", "status"}),
		itemReadCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_read_total",
			Help: "Total items read by step.",
		}, []string{"step_name"}),
		itemProcessCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_process_total",
			Help: "Total items processed by step.",
		}, []string{"step_name"}),
		itemFilterCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_filter_total",
			Help: "Total items filtered by step.",
		}, []string{"step_name"}),
		itemWriteCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_write_total",
			Help: "Total items written by step.",
		}, []string{"step_name"}),
		itemSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_skip_total",
			Help: "Total items skipped by step and stage.",
		}, []string{"step_name", "stage"}),
		itemRetryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_retry_total",
			Help: "Total item retries by step and stage.",
		}, []string{"step_name", "stage"}),
		chunkCommitCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_commit_total",
			Help: "Total chunk commits by step.",
		}, []string{"step_name"}),
		chunkRollbackCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_rollback_total",
			Help: "Total chunk rollbacks by step.",
		}, []string{"step_name"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_operation_duration_seconds",
			Help:    "Duration of named batch operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.jobsRunning,
		r.launchRejected,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.itemReadCount,
		r.itemProcessCount,
		r.itemFilterCount,
		r.itemWriteCount,
		r.itemSkipCounter,
		r.itemRetryCounter,
		r.chunkCommitCount,
		r.chunkRollbackCount,
		r.operationDuration,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobsRunning.WithLabelValues(execution.JobName).Inc()
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd records the end of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.jobsRunning.WithLabelValues(execution.JobName).Dec()
	r.jobStatusCounter.WithLabelValues(execution.JobName, execution.Status.String()).Inc()
	duration := execution.Duration().Seconds()
	r.jobDurationSeconds.WithLabelValues(
		execution.JobName,
		execution.Status.String(),
		string(execution.ExitStatus),
	).Observe(duration)
	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

// RecordStepStart records the start of a StepExecution.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	logger.Debugf("Metrics: Step '%s' started.", execution.StepName)
}

// RecordStepEnd records the end of a StepExecution.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := jobNameOf(execution)
	r.stepStatusCounter.WithLabelValues(jobName, execution.StepName, execution.Status.String()).Inc()
	duration := stepDuration(execution).Seconds()
	r.stepDurationSeconds.WithLabelValues(jobName, execution.StepName, execution.Status.String(), string(execution.ExitStatus)).Observe(duration)
	logger.Debugf("Metrics: Step '%s' ended. Duration: %.3fs", execution.StepName, duration)
}

// RecordItemRead records one successful read.
func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemReadCount.WithLabelValues(stepName).Inc()
}

// RecordItemProcess records one successful process call.
func (r *PrometheusRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.itemProcessCount.WithLabelValues(stepName).Inc()
}

// RecordItemFilter records a filtered item.
func (r *PrometheusRecorder) RecordItemFilter(ctx context.Context, stepName string) {
	r.itemFilterCount.WithLabelValues(stepName).Inc()
}

// RecordItemWrite records count written items.
func (r *PrometheusRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemWriteCount.WithLabelValues(stepName).Add(float64(count))
}

// RecordItemSkip records a skipped item.
func (r *PrometheusRecorder) RecordItemSkip(ctx context.Context, stepName string, stage string) {
	r.itemSkipCounter.WithLabelValues(stepName, stage).Inc()
}

// RecordItemRetry records a retried item operation.
func (r *PrometheusRecorder) RecordItemRetry(ctx context.Context, stepName string, stage string) {
	r.itemRetryCounter.WithLabelValues(stepName, stage).Inc()
}

// RecordChunkCommit records a committed chunk.
func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.chunkCommitCount.WithLabelValues(stepName).Inc()
}

// RecordChunkRollback records a rolled back chunk.
func (r *PrometheusRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunkRollbackCount.WithLabelValues(stepName).Inc()
}

// RecordLaunchRejected records a rejected launch.
func (r *PrometheusRecorder) RecordLaunchRejected(ctx context.Context, jobName string, reason string) {
	r.launchRejected.WithLabelValues(jobName, reason).Inc()
}

// RecordDuration records the duration of a named operation. Tags are not used as labels
// because their keys vary per name.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func jobNameOf(execution *model.StepExecution) string {
	if execution.JobExecution != nil {
		return execution.JobExecution.JobName
	}
	return ""
}

func stepDuration(execution *model.StepExecution) time.Duration {
	if execution.StartTime.IsZero() {
		return 0
	}
	if execution.EndTime == nil {
		return time.Since(execution.StartTime)
	}
	return execution.EndTime.Sub(execution.StartTime)
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
