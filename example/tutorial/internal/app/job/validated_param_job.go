package job

import (
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/validator"

	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const (
	ValidatedParamJobName = "validatedParamJob"

	// FileNameParam must end in ".csv".
	FileNameParam = "fileName"
)

// NewValidatedParamJob rejects launches whose fileName parameter is not a csv file and
// logs the parameter otherwise.
func NewValidatedParamJob(p Params) (port.Job, error) {
	flow, err := runner.NewFlowBuilder(ValidatedParamJobName).
		Start(newTaskletStep(p, "validatedParamStep", appstep.NewParameterLoggingTasklet(FileNameParam))).
		Build()
	if err != nil {
		return nil, err
	}
	v := validator.NewCompositeValidator(
		validator.NewSuffixValidator(FileNameParam, []string{"csv"}, validator.WithMessage("This is not csv file")),
	)
	return newJob(p, flow, []runner.JobOption{runner.WithValidator(v)}), nil
}
