package runner

import (
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/surfin-tutorial/pkg/batch/core/metrics"
	"go.uber.org/fx"
)

// SimpleJobRunnerParams defines dependencies for SimpleJobRunner.
type SimpleJobRunnerParams struct {
	fx.In
	JobRepository  repository.JobRepository
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// NewJobRunner provides the JobRunner implementation.
func NewJobRunner(p SimpleJobRunnerParams) JobRunner {
	return NewSimpleJobRunner(p.JobRepository, p.MetricRecorder, p.Tracer)
}

// Module provides the JobRunner.
var Module = fx.Options(
	fx.Provide(NewJobRunner),
)
