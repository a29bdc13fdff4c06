// Package step provides the tasklets and item processors of the tutorial jobs.
package step

import (
	"context"
	"fmt"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// MessageTaskletConfig binds the properties of a MessageTasklet.
type MessageTaskletConfig struct {
	Message string `yaml:"message"`
}

// MessageTasklet logs a configured message.
type MessageTasklet struct {
	config MessageTaskletConfig
}

// NewMessageTasklet creates a MessageTasklet from properties. The "message" property is
// required.
func NewMessageTasklet(properties map[string]string) (*MessageTasklet, error) {
	var cfg MessageTaskletConfig
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("message_tasklet", "Failed to bind properties", err, false, false)
	}
	if cfg.Message == "" {
		return nil, fmt.Errorf("message property is required for MessageTasklet")
	}
	return &MessageTasklet{config: cfg}, nil
}

// Message returns the configured message.
func (t *MessageTasklet) Message() string {
	return t.config.Message
}

func (t *MessageTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	select {
	case <-ctx.Done():
		return model.RepeatStatusFinished, ctx.Err()
	default:
	}
	logger.Infof("%s", t.config.Message)
	return model.RepeatStatusFinished, nil
}

// JobContextLoggingTasklet logs a value an earlier step stored in the job context.
type JobContextLoggingTasklet struct {
	key string
}

func NewJobContextLoggingTasklet(key string) *JobContextLoggingTasklet {
	return &JobContextLoggingTasklet{key: key}
}

// Execute fails when the key is missing, since the step depends on its predecessor.
func (t *JobContextLoggingTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	value, ok := stepExecution.JobExecutionContext().Get(t.key)
	if !ok {
		return model.RepeatStatusFinished, exception.NewBatchErrorf("job_context_logging_tasklet", "key '%s' not found in the job ExecutionContext", t.key)
	}
	logger.Infof("Value put by the previous step: %s = %v", t.key, value)
	stepExecution.ExecutionContext.Put(t.key, value)
	return model.RepeatStatusFinished, nil
}

// ParameterLoggingTasklet logs one job parameter.
type ParameterLoggingTasklet struct {
	key string
}

func NewParameterLoggingTasklet(key string) *ParameterLoggingTasklet {
	return &ParameterLoggingTasklet{key: key}
}

func (t *ParameterLoggingTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	var value interface{}
	if stepExecution.JobExecution != nil {
		value = stepExecution.JobExecution.Parameters.Get(t.key)
	}
	logger.Infof("tasklet = %v", value)
	return model.RepeatStatusFinished, nil
}

var (
	_ port.Tasklet = (*MessageTasklet)(nil)
	_ port.Tasklet = (*JobContextLoggingTasklet)(nil)
	_ port.Tasklet = (*ParameterLoggingTasklet)(nil)
)
