package job

import (
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/generic"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"

	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const ConditionalStepJobName = "conditionalStepJob"

// NewConditionalStepJob routes on the exit status of conditionalStartStep, which always
// fails. The FAILED transition leads to conditionalFailStep, so the job still completes.
func NewConditionalStepJob(p Params) (port.Job, error) {
	starter, err := generic.NewRandomFailTasklet("conditionalStartStep", map[string]string{"failRate": "1"})
	if err != nil {
		return nil, err
	}
	start := newTaskletStep(p, "conditionalStartStep", starter)

	messages := map[string]string{
		"conditionalFailStep":      "conditional Fail Step",
		"conditionalCompletedStep": "conditional Completed Step",
		"conditionalAllStep":       "conditional All Step",
	}
	steps := make(map[string]port.Step, len(messages))
	for name, msg := range messages {
		t, err := appstep.NewMessageTasklet(map[string]string{"message": msg})
		if err != nil {
			return nil, err
		}
		steps[name] = newTaskletStep(p, name, t)
	}

	flow, err := runner.NewFlowBuilder(ConditionalStepJobName).
		Start(start).
		On("FAILED").To(steps["conditionalFailStep"]).
		From(start).On("COMPLETED").To(steps["conditionalCompletedStep"]).
		From(start).On("*").To(steps["conditionalAllStep"]).
		Build()
	if err != nil {
		return nil, err
	}
	return newJob(p, flow, nil), nil
}
