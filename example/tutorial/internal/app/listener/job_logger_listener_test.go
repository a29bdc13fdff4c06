package listener_test

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/app/listener"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

func TestJobLoggerListener(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	instance, err := model.NewJobInstance("jobListenerJob", model.NewJobParameters())
	require.NoError(t, err)
	je := model.NewJobExecution(instance)
	l := listener.NewJobLoggerListener()
	ctx := context.Background()

	require.NoError(t, l.BeforeJob(ctx, je))
	assert.Contains(t, buf.String(), "jobListenerJob Job is Running")

	je.Status = model.BatchStatusCompleted
	require.NoError(t, l.AfterJob(ctx, je))
	assert.Contains(t, buf.String(), "jobListenerJob Job is Done. (Status : COMPLETED)")
	assert.NotContains(t, buf.String(), "Job is Failed")

	je.Status = model.BatchStatusFailed
	require.NoError(t, l.AfterJob(ctx, je))
	assert.Contains(t, buf.String(), "(Status : FAILED)")
	assert.Contains(t, buf.String(), "Job is Failed")
}
