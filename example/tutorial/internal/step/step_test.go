package step_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/domain"
	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

func newStepExecution(params model.JobParameters) *model.StepExecution {
	instance, _ := model.NewJobInstance("tutorialJob", params)
	return model.NewStepExecution("tutorialStep", model.NewJobExecution(instance))
}

func TestMessageTasklet(t *testing.T) {
	_, err := step.NewMessageTasklet(nil)
	assert.Error(t, err)

	tasklet, err := step.NewMessageTasklet(map[string]string{"message": "Hello World Spring Batch"})
	require.NoError(t, err)
	assert.Equal(t, "Hello World Spring Batch", tasklet.Message())

	status, err := tasklet.Execute(context.Background(), newStepExecution(model.NewJobParameters()))
	require.NoError(t, err)
	assert.Equal(t, model.RepeatStatusFinished, status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tasklet.Execute(ctx, newStepExecution(model.NewJobParameters()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJobContextLoggingTasklet(t *testing.T) {
	se := newStepExecution(model.NewJobParameters())
	tasklet := step.NewJobContextLoggingTasklet("someKey")

	_, err := tasklet.Execute(context.Background(), se)
	assert.Error(t, err)

	se.JobExecution.ExecutionContext.Put("someKey", "hello!!")
	_, err = tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	value, _ := se.ExecutionContext.GetString("someKey")
	assert.Equal(t, "hello!!", value)
}

func TestParameterLoggingTasklet(t *testing.T) {
	params := model.NewJobParameters()
	params.PutString("fileName", "test.csv")
	status, err := step.NewParameterLoggingTasklet("fileName").Execute(context.Background(), newStepExecution(params))
	require.NoError(t, err)
	assert.Equal(t, model.RepeatStatusFinished, status)
}

func TestProcessors(t *testing.T) {
	ctx := context.Background()
	fixed := func() time.Time { return time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC) }

	py, err := step.NewPlayerYearsProcessor(fixed).Process(ctx, domain.Player{ID: "AdamBo00", DebutYear: 1969})
	require.NoError(t, err)
	assert.Equal(t, 51, py.YearsExperience)

	ordered := time.Date(2020, 5, 30, 0, 0, 0, 0, time.UTC)
	account, err := step.NewAccountProcessor(fixed).Process(ctx, domain.Order{ID: 3, OrderItem: "cup", Price: 800, OrderDate: ordered})
	require.NoError(t, err)
	assert.Equal(t, fixed(), account.AccountDate)
	assert.Equal(t, ordered, account.OrderDate)

	_, err = step.PlayerRecordProcessor{}.Process(ctx, domain.Player{})
	assert.ErrorIs(t, err, port.ErrFilterItem)
}
