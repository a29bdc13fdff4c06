package model

// JobStatus is the lifecycle state of a job or step execution.
type JobStatus string

const (
	BatchStatusStarting  JobStatus = "STARTING"
	BatchStatusStarted   JobStatus = "STARTED"
	BatchStatusStopping  JobStatus = "STOPPING"
	BatchStatusStopped   JobStatus = "STOPPED"
	BatchStatusCompleted JobStatus = "COMPLETED"
	BatchStatusFailed    JobStatus = "FAILED"
	BatchStatusAbandoned JobStatus = "ABANDONED"
	BatchStatusUnknown   JobStatus = "UNKNOWN"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsFinished reports whether s is terminal. Terminal executions are never modified again.
func (s JobStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return true
	}
	return false
}

// IsRunning reports whether s is one of the in-flight states.
func (s JobStatus) IsRunning() bool {
	switch s {
	case BatchStatusStarting, BatchStatusStarted, BatchStatusStopping:
		return true
	}
	return false
}

// IsRestartable reports whether an instance whose last execution ended in s may be run again.
func (s JobStatus) IsRestartable() bool {
	return s == BatchStatusFailed || s == BatchStatusStopped
}

// ToExitStatus converts the JobStatus to its default ExitStatus.
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped:
		return ExitStatusStopped
	case BatchStatusAbandoned:
		return ExitStatusAbandoned
	case BatchStatusStarting, BatchStatusStarted, BatchStatusStopping:
		return ExitStatusExecuting
	}
	return ExitStatusUnknown
}

// CanTransition reports whether moving from current to next is a forward transition.
//
//	STARTING -> STARTED | STOPPED | FAILED | ABANDONED
//	STARTED  -> STOPPING | COMPLETED | FAILED | STOPPED | ABANDONED
//	STOPPING -> STOPPED | FAILED | ABANDONED
//
// Terminal states accept no transition. Staying in the same non-terminal state is allowed.
func CanTransition(current, next JobStatus) bool {
	if current == next {
		return !current.IsFinished()
	}
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusStopped || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusStopping || next == BatchStatusCompleted || next == BatchStatusFailed ||
			next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStopping:
		return next == BatchStatusStopped || next == BatchStatusFailed || next == BatchStatusAbandoned
	}
	return false
}

// ExitStatus is the exit code of a job or step. Besides the predefined values a step may
// report any custom code (e.g. "RETRY") that the job graph can route on.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusExecuting ExitStatus = "EXECUTING"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
	ExitStatusNoOp      ExitStatus = "NOOP"
)

// String returns the ExitStatus as a string.
func (s ExitStatus) String() string {
	return string(s)
}

// RepeatStatus is returned by a tasklet to tell its step whether to call it again.
type RepeatStatus int

const (
	// RepeatStatusFinished ends the tasklet step.
	RepeatStatusFinished RepeatStatus = iota
	// RepeatStatusContinuable asks the step to invoke the tasklet again.
	RepeatStatusContinuable
)

func (r RepeatStatus) String() string {
	if r == RepeatStatusContinuable {
		return "CONTINUABLE"
	}
	return "FINISHED"
}
