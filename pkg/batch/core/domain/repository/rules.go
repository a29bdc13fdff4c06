package repository

import (
	"fmt"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// CheckStatusUpdate validates replacing a stored status with next.
// Once stored, a terminal status may only be rewritten with itself (for example to record a
// new exit status); every other change must follow model.CanTransition or keep the status.
func CheckStatusUpdate(op string, id string, stored, next model.JobStatus) error {
	if stored == next {
		return nil
	}
	if stored.IsFinished() || !model.CanTransition(stored, next) {
		return exception.NewRepositoryError(op,
			fmt.Sprintf("execution %s cannot move from %s to %s", id, stored, next), nil)
	}
	return nil
}

// CheckVersion reports an optimistic locking failure when the caller's version is stale.
func CheckVersion(op string, id string, stored, given int) error {
	if stored != given {
		return exception.NewRepositoryError(op,
			fmt.Sprintf("execution %s version %d does not match stored version %d", id, given, stored),
			exception.NewOptimisticLockingFailureException("repository", "stale version of "+id, nil))
	}
	return nil
}

// CheckLaunchable decides whether a new execution may be created for an instance whose
// latest execution is last. A nil last means the instance has never run.
func CheckLaunchable(jobName string, instance *model.JobInstance, last *model.JobExecution) error {
	if last == nil {
		return nil
	}
	switch {
	case last.Status == model.BatchStatusCompleted:
		return exception.NewDuplicateExecutionError(jobName, instance.ID)
	case last.Status.IsRunning():
		return exception.NewJobExecutionAlreadyRunningError(jobName, last.ID)
	case last.Status == model.BatchStatusAbandoned:
		return exception.NewRepositoryError("CreateJobExecution",
			fmt.Sprintf("job instance %s of '%s' was abandoned and cannot be restarted", instance.ID, jobName), nil)
	}
	return nil
}

// NextExecution builds the execution that follows last for instance. It carries over the
// job ExecutionContext and increments the restart count.
func NextExecution(instance *model.JobInstance, last *model.JobExecution) *model.JobExecution {
	je := model.NewJobExecution(instance)
	if last != nil {
		je.ExecutionContext = last.ExecutionContext.Copy()
		je.RestartCount = last.RestartCount + 1
	}
	return je
}
