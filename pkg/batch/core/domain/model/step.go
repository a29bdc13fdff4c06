package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// StepExecution is one invocation of a step within a JobExecution.
type StepExecution struct {
	ID             string
	StepName       string
	JobExecutionID string
	// JobExecution is the owning execution. Its ExecutionContext is the job-global scope.
	JobExecution *JobExecution
	Status       JobStatus
	// ExitStatus may carry a custom code used by conditional transitions.
	ExitStatus       ExitStatus
	StartTime        time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	Failures         FailureList
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	ReadSkipCount    int
	ProcessSkipCount int
	WriteSkipCount   int
	// ExecutionContext is the step-local scope. It is persisted after every chunk commit.
	ExecutionContext ExecutionContext
	Version          int
}

// NewStepExecution creates a StepExecution in STARTING state and links it to je.
func NewStepExecution(stepName string, je *JobExecution) *StepExecution {
	now := time.Now()
	return &StepExecution{
		ID:               NewID(),
		StepName:         stepName,
		JobExecutionID:   je.ID,
		JobExecution:     je,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusExecuting,
		StartTime:        now,
		LastUpdated:      now,
		Failures:         FailureList{},
		ExecutionContext: NewExecutionContext(),
	}
}

// TransitionTo moves the step to newStatus if the move is a forward transition.
func (se *StepExecution) TransitionTo(newStatus JobStatus) error {
	if !CanTransition(se.Status, newStatus) {
		return fmt.Errorf("StepExecution (ID: %s, step: %s): invalid state transition: %s -> %s", se.ID, se.StepName, se.Status, newStatus)
	}
	se.Status = newStatus
	se.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted moves the step to STARTED.
func (se *StepExecution) MarkAsStarted() {
	if err := se.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("%v", err)
	}
}

// MarkAsCompleted finishes the step as COMPLETED. A custom exit status already set by the
// step body is kept; otherwise exit status becomes COMPLETED.
func (se *StepExecution) MarkAsCompleted() {
	exit := se.ExitStatus
	if exit == "" || exit == ExitStatusExecuting || exit == ExitStatusUnknown {
		exit = ExitStatusCompleted
	}
	se.finish(BatchStatusCompleted, exit)
}

// MarkAsFailed finishes the step as FAILED and records err.
func (se *StepExecution) MarkAsFailed(err error) {
	if se.Failures.add(err) {
		se.LastUpdated = time.Now()
	}
	se.finish(BatchStatusFailed, ExitStatusFailed)
}

// MarkAsStopped finishes the step as STOPPED.
func (se *StepExecution) MarkAsStopped() {
	se.finish(BatchStatusStopped, ExitStatusStopped)
}

func (se *StepExecution) finish(status JobStatus, exit ExitStatus) {
	if err := se.TransitionTo(status); err != nil {
		logger.Warnf("%v", err)
		return
	}
	se.ExitStatus = exit
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// SetExitStatus sets a custom exit code reported when the step completes.
func (se *StepExecution) SetExitStatus(exit ExitStatus) {
	se.ExitStatus = exit
}

// AddFailureException records err, ignoring duplicates.
func (se *StepExecution) AddFailureException(err error) {
	if se.Failures.add(err) {
		se.LastUpdated = time.Now()
	}
}

// JobExecutionContext returns the job-global context, or nil if the step is detached.
func (se *StepExecution) JobExecutionContext() ExecutionContext {
	if se.JobExecution == nil {
		return nil
	}
	return se.JobExecution.ExecutionContext
}

// SkipCount returns the total of read, process and write skips.
func (se *StepExecution) SkipCount() int {
	return se.ReadSkipCount + se.ProcessSkipCount + se.WriteSkipCount
}

// Snapshot returns a detached copy with JobExecution cleared.
func (se *StepExecution) Snapshot() *StepExecution {
	cp := *se
	cp.JobExecution = nil
	cp.Failures = append(FailureList{}, se.Failures...)
	cp.ExecutionContext = se.ExecutionContext.Copy()
	cp.EndTime = copyTime(se.EndTime)
	return &cp
}

// String summarizes the step execution for logs.
func (se *StepExecution) String() string {
	return fmt.Sprintf("StepExecution{id=%s, step=%s, status=%s, exit=%s, read=%d, write=%d, filter=%d, commit=%d, rollback=%d, skip=%d}",
		se.ID, se.StepName, se.Status, se.ExitStatus, se.ReadCount, se.WriteCount, se.FilterCount,
		se.CommitCount, se.RollbackCount, se.SkipCount())
}
