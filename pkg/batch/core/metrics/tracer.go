package metrics

import (
	"context"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

// Tracer opens spans around job and step executions.
type Tracer interface {
	// StartJobSpan starts a span for execution and returns the context carrying it together
	// with the function that ends it.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())

	// StartStepSpan starts a span for execution, normally as a child of the job span in ctx.
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())

	// RecordError records err on the span in ctx. module names the component that failed
	// (e.g. "reader", "writer", "flow").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent adds a named event with attributes to the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
