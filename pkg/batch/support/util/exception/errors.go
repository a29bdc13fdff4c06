package exception

import "fmt"

// ValidationError reports that job parameters were rejected by a validator.
// The job never starts.
type ValidationError struct {
	*BatchError
	JobName string
}

// NewValidationError creates a ValidationError for jobName.
func NewValidationError(jobName, message string, cause error) *ValidationError {
	return &ValidationError{
		BatchError: NewBatchError("validator", message, cause, false, false),
		JobName:    jobName,
	}
}

// DuplicateExecutionError reports a launch whose job instance already completed.
type DuplicateExecutionError struct {
	*BatchError
	JobName    string
	InstanceID string
}

// NewDuplicateExecutionError creates a DuplicateExecutionError.
func NewDuplicateExecutionError(jobName, instanceID string) *DuplicateExecutionError {
	return &DuplicateExecutionError{
		BatchError: NewBatchError("repository",
			fmt.Sprintf("job instance already completed for job '%s' (instance %s); change the parameters to run again", jobName, instanceID),
			nil, false, false),
		JobName:    jobName,
		InstanceID: instanceID,
	}
}

// JobExecutionAlreadyRunningError reports a launch that would overlap a running execution.
type JobExecutionAlreadyRunningError struct {
	*BatchError
	JobName     string
	ExecutionID string
}

// NewJobExecutionAlreadyRunningError creates a JobExecutionAlreadyRunningError.
func NewJobExecutionAlreadyRunningError(jobName, executionID string) *JobExecutionAlreadyRunningError {
	return &JobExecutionAlreadyRunningError{
		BatchError: NewBatchError("launcher",
			fmt.Sprintf("job '%s' is already running (execution %s)", jobName, executionID),
			nil, false, false),
		JobName:     jobName,
		ExecutionID: executionID,
	}
}

// StepFailure reports that a tasklet or a chunk stage (read, process, write) failed.
type StepFailure struct {
	*BatchError
	StepName string
	// Stage is the phase that failed: "tasklet", "open", "read", "process", "write", "commit",
	// "close" or "listener".
	Stage string
}

// NewStepFailure creates a StepFailure wrapping cause.
func NewStepFailure(stepName, stage string, cause error) *StepFailure {
	return &StepFailure{
		BatchError: NewBatchError("step", fmt.Sprintf("step '%s' failed during %s", stepName, stage), cause, false, false),
		StepName:   stepName,
		Stage:      stage,
	}
}

// TransitionConfigError reports an invalid job graph. It is detected when the job is built
// and is never recoverable.
type TransitionConfigError struct {
	*BatchError
	JobName string
}

// NewTransitionConfigError creates a TransitionConfigError with a formatted message.
func NewTransitionConfigError(jobName, format string, a ...interface{}) *TransitionConfigError {
	return &TransitionConfigError{
		BatchError: NewBatchError("flow", fmt.Sprintf("job '%s': %s", jobName, fmt.Sprintf(format, a...)), nil, false, false),
		JobName:    jobName,
	}
}

// RepositoryError reports a persistence failure while creating or updating execution records.
// It is surfaced to the caller and never retried.
type RepositoryError struct {
	*BatchError
	Operation string
}

// NewRepositoryError creates a RepositoryError for operation.
func NewRepositoryError(operation, message string, cause error) *RepositoryError {
	return &RepositoryError{
		BatchError: NewBatchError("repository", fmt.Sprintf("%s: %s", operation, message), cause, false, false),
		Operation:  operation,
	}
}
