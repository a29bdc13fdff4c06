package job

import (
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"

	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const HelloWorldJobName = "helloWorldJob"

// NewHelloWorldJob logs a greeting in a single step.
func NewHelloWorldJob(p Params) (port.Job, error) {
	hello, err := appstep.NewMessageTasklet(map[string]string{"message": "Hello World Spring Batch"})
	if err != nil {
		return nil, err
	}
	flow, err := runner.NewFlowBuilder(HelloWorldJobName).
		Start(newTaskletStep(p, "helloWorldStep", hello)).
		Build()
	if err != nil {
		return nil, err
	}
	return newJob(p, flow, nil), nil
}
