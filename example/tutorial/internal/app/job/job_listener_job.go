package job

import (
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/app/listener"
	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const JobListenerJobName = "jobListenerJob"

// NewJobListenerJob runs one step with a JobLoggerListener attached to the job.
func NewJobListenerJob(p Params) (port.Job, error) {
	t, err := appstep.NewMessageTasklet(map[string]string{"message": "JobListener Tasklet"})
	if err != nil {
		return nil, err
	}
	flow, err := runner.NewFlowBuilder(JobListenerJobName).
		Start(newTaskletStep(p, "jobListenerStep", t)).
		Build()
	if err != nil {
		return nil, err
	}
	return newJob(p, flow, nil, listener.NewJobLoggerListener()), nil
}
