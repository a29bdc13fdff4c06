// Package listener holds the job listeners of the tutorial application.
package listener

import (
	"context"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// JobLoggerListener logs the start and the outcome of a job, and flags failed runs.
type JobLoggerListener struct{}

func NewJobLoggerListener() *JobLoggerListener {
	return &JobLoggerListener{}
}

func (l *JobLoggerListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("%s Job is Running", jobExecution.JobName)
	return nil
}

func (l *JobLoggerListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("%s Job is Done. (Status : %s)", jobExecution.JobName, jobExecution.Status)
	if jobExecution.Status == model.BatchStatusFailed {
		// TODO: send the failure mail once a Notifier with an SMTP backend exists.
		logger.Infof("Job is Failed")
	}
	return nil
}

var _ port.JobExecutionListener = (*JobLoggerListener)(nil)
