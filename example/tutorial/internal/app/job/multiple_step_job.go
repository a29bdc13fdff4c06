package job

import (
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/generic"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"

	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const (
	MultipleStepJobName = "multipleStepJob"

	// SharedValueKey is the job context key written by multipleStep2 and read by multipleStep3.
	SharedValueKey = "someKey"
)

// NewMultipleStepJob runs three steps in sequence. The second puts a value in the job
// context and the third reads it back.
func NewMultipleStepJob(p Params) (port.Job, error) {
	first, err := appstep.NewMessageTasklet(map[string]string{"message": "step1"})
	if err != nil {
		return nil, err
	}
	share := generic.NewExecutionContextWriterTasklet("multipleStep2", map[string]string{
		SharedValueKey + ".string": "hello!!",
	}, generic.ScopeJob)

	flow, err := runner.NewFlowBuilder(MultipleStepJobName).
		Start(newTaskletStep(p, "multipleStep1", first)).
		Next(newTaskletStep(p, "multipleStep2", share)).
		Next(newTaskletStep(p, "multipleStep3", appstep.NewJobContextLoggingTasklet(SharedValueKey))).
		Build()
	if err != nil {
		return nil, err
	}
	return newJob(p, flow, nil), nil
}
