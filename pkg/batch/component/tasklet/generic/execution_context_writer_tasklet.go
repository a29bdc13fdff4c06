// Package generic provides general-purpose tasklets that jobs can use without writing
// their own port.Tasklet.
package generic

import (
	"context"
	"strconv"
	"strings"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// Scope selects the ExecutionContext a tasklet writes to.
type Scope int

const (
	// ScopeStep writes to the context of the running StepExecution.
	ScopeStep Scope = iota
	// ScopeJob writes to the job-global context, visible to the steps that follow.
	ScopeJob
)

// ExecutionContextWriterTasklet is a [port.Tasklet] that writes typed property values to an
// [model.ExecutionContext].
type ExecutionContextWriterTasklet struct {
	name       string
	scope      Scope
	properties map[string]string
}

// NewExecutionContextWriterTasklet creates a new [ExecutionContextWriterTasklet].
//
// Parameters:
//
//	name: The name used in logs and errors.
//	properties: Values keyed "key.type", e.g. "count.int" or "someKey.string". The type is
//	            the part after the last dot, so "numbers.index.int" writes "numbers.index".
//	scope: The context written to.
//
// Returns:
//
//	*ExecutionContextWriterTasklet: The tasklet.
func NewExecutionContextWriterTasklet(name string, properties map[string]string, scope Scope) *ExecutionContextWriterTasklet {
	return &ExecutionContextWriterTasklet{
		name:       name,
		scope:      scope,
		properties: properties,
	}
}

// Execute converts each property and puts it into the selected context. Supported types
// are string, int, long, double (or float) and bool. Unknown types are written as strings.
func (t *ExecutionContextWriterTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	ec := stepExecution.ExecutionContext
	if t.scope == ScopeJob {
		ec = stepExecution.JobExecutionContext()
	}
	if ec == nil {
		return model.RepeatStatusFinished, exception.NewBatchErrorf(t.name, "no ExecutionContext available for step '%s'", stepExecution.StepName)
	}
	logger.Infof("ExecutionContextWriterTasklet '%s' executing. Writing %d properties to ExecutionContext.", t.name, len(t.properties))

	for keyWithType, valueStr := range t.properties {
		idx := strings.LastIndex(keyWithType, ".")
		if idx <= 0 || idx == len(keyWithType)-1 {
			logger.Warnf("Property key '%s' is not in 'key.type' format. Skipping.", keyWithType)
			continue
		}
		key, typeStr := keyWithType[:idx], strings.ToLower(keyWithType[idx+1:])

		var value interface{}
		var err error
		switch typeStr {
		case "string":
			value = valueStr
		case "int":
			value, err = strconv.Atoi(valueStr)
		case "long", "int64":
			value, err = strconv.ParseInt(valueStr, 10, 64)
		case "double", "float", "float64":
			value, err = strconv.ParseFloat(valueStr, 64)
		case "bool":
			value, err = strconv.ParseBool(valueStr)
		default:
			logger.Warnf("Unknown type '%s' for key '%s'. Treating as string.", typeStr, key)
			value = valueStr
		}
		if err != nil {
			return model.RepeatStatusFinished, exception.NewBatchError(t.name,
				"failed to convert value '"+valueStr+"' to type '"+typeStr+"' for key '"+key+"'", err, false, false)
		}
		ec.Put(key, value)
		logger.Debugf("Wrote to EC: %s = %v (Type: %s)", key, value, typeStr)
	}
	return model.RepeatStatusFinished, nil
}

var _ port.Tasklet = (*ExecutionContextWriterTasklet)(nil)
