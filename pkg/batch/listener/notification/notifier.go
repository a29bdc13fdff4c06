// Package notification reports finished job executions to a Notifier.
package notification

import (
	"context"
	"fmt"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// Notifier informs an external system about job execution results.
type Notifier interface {
	// NotifyJobCompletion is called once per execution with its terminal status
	// (COMPLETED, FAILED or STOPPED).
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error
}

// LoggingNotifier writes one summary line per finished execution to the logger.
type LoggingNotifier struct{}

func NewLoggingNotifier() *LoggingNotifier {
	return &LoggingNotifier{}
}

func (n *LoggingNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error {
	message := Summary(execution)
	if execution.Status == model.BatchStatusCompleted {
		logger.Infof("%s", message)
	} else {
		logger.Warnf("%s", message)
	}
	return nil
}

var _ Notifier = (*LoggingNotifier)(nil)

// Summary formats the notification text of an execution.
func Summary(execution *model.JobExecution) string {
	return fmt.Sprintf(
		"Job Notification: Job '%s' (ID: %s) finished with Status: %s, ExitStatus: %s. Duration: %s, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.Status,
		execution.ExitStatus,
		execution.Duration(),
		len(execution.Failures),
	)
}

// NotificationListener calls its Notifier after every job. Notifier errors are returned
// and therefore logged by the job, never changing its status.
type NotificationListener struct {
	notifier Notifier
}

func NewNotificationListener(notifier Notifier) *NotificationListener {
	return &NotificationListener{notifier: notifier}
}

func (l *NotificationListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) error {
	return nil
}

func (l *NotificationListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) error {
	if err := l.notifier.NotifyJobCompletion(ctx, jobExecution); err != nil {
		return fmt.Errorf("notify completion of job '%s': %w", jobExecution.JobName, err)
	}
	return nil
}

var _ port.JobExecutionListener = (*NotificationListener)(nil)
