package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// FailureList holds the failure messages recorded on an execution.
type FailureList []string

// Value implements driver.Valuer.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(fl))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (fl *FailureList) Scan(value interface{}) error {
	b, err := scanBytes(value, "FailureList")
	if err != nil {
		return err
	}
	*fl = FailureList{}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, (*[]string)(fl)); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

func (fl *FailureList) add(err error) bool {
	if err == nil {
		return false
	}
	msg := exception.ExtractErrorMessage(err)
	for _, existing := range *fl {
		if existing == msg {
			return false
		}
	}
	*fl = append(*fl, msg)
	return true
}

// JobInstance is the logical run of a job: a job name plus identifying parameters.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance and computes its parameters hash.
func NewJobInstance(jobName string, params JobParameters) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params.Copy(),
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution is one launch attempt of a JobInstance.
//
// A JobExecution returned by the launcher is mutated by the goroutine running the job
// until it reaches a terminal status; other goroutines should read it through the
// repository or after waiting for completion.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	Status           JobStatus
	ExitStatus       ExitStatus
	CreateTime       time.Time
	StartTime        *time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	Failures         FailureList
	ExecutionContext ExecutionContext
	// StepExecutions are kept in the order the steps ran.
	StepExecutions  []*StepExecution
	CurrentStepName string
	RestartCount    int
	Version         int
}

// NewJobExecution creates a JobExecution in STARTING state for the given instance.
func NewJobExecution(instance *JobInstance) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    instance.ID,
		JobName:          instance.JobName,
		Parameters:       instance.Parameters.Copy(),
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         FailureList{},
		ExecutionContext: NewExecutionContext(),
	}
}

// TransitionTo moves the execution to newStatus if the move is a forward transition.
func (je *JobExecution) TransitionTo(newStatus JobStatus) error {
	if !CanTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	je.LastUpdated = time.Now()
	return nil
}

func (je *JobExecution) finish(status JobStatus, exit ExitStatus) {
	if err := je.TransitionTo(status); err != nil {
		logger.Warnf("%v", err)
		return
	}
	je.ExitStatus = exit
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// MarkAsStarted moves the execution to STARTED and stamps the start time.
func (je *JobExecution) MarkAsStarted() {
	if err := je.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("%v", err)
		return
	}
	now := time.Now()
	je.StartTime = &now
	je.ExitStatus = ExitStatusExecuting
}

// MarkAsCompleted finishes the execution as COMPLETED with exit status exit (COMPLETED if empty).
func (je *JobExecution) MarkAsCompleted(exit ExitStatus) {
	if exit == "" {
		exit = ExitStatusCompleted
	}
	je.finish(BatchStatusCompleted, exit)
}

// MarkAsFailed finishes the execution as FAILED and records err.
func (je *JobExecution) MarkAsFailed(err error) {
	je.AddFailureException(err)
	je.finish(BatchStatusFailed, ExitStatusFailed)
}

// MarkAsStopping requests a stop of a running execution.
func (je *JobExecution) MarkAsStopping() {
	if err := je.TransitionTo(BatchStatusStopping); err != nil {
		logger.Warnf("%v", err)
	}
}

// MarkAsStopped finishes the execution as STOPPED.
func (je *JobExecution) MarkAsStopped() {
	je.finish(BatchStatusStopped, ExitStatusStopped)
}

// MarkAsAbandoned finishes the execution as ABANDONED; an abandoned instance is never restarted.
func (je *JobExecution) MarkAsAbandoned() {
	je.finish(BatchStatusAbandoned, ExitStatusAbandoned)
}

// AddFailureException records err, ignoring duplicates of an already recorded message.
func (je *JobExecution) AddFailureException(err error) {
	if je.Failures.add(err) {
		je.LastUpdated = time.Now()
	}
}

// AddStepExecution appends se to the ordered step executions.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.StepExecutions = append(je.StepExecutions, se)
}

// LastStepExecution returns the most recently added step execution, or nil.
func (je *JobExecution) LastStepExecution() *StepExecution {
	if len(je.StepExecutions) == 0 {
		return nil
	}
	return je.StepExecutions[len(je.StepExecutions)-1]
}

// Duration returns the elapsed run time, up to now for an unfinished execution.
func (je *JobExecution) Duration() time.Duration {
	if je.StartTime == nil {
		return 0
	}
	if je.EndTime == nil {
		return time.Since(*je.StartTime)
	}
	return je.EndTime.Sub(*je.StartTime)
}

// Snapshot returns a copy detached from the running execution. Step executions are
// copied too and point at the snapshot.
func (je *JobExecution) Snapshot() *JobExecution {
	cp := *je
	cp.Parameters = je.Parameters.Copy()
	cp.Failures = append(FailureList{}, je.Failures...)
	cp.ExecutionContext = je.ExecutionContext.Copy()
	cp.StartTime = copyTime(je.StartTime)
	cp.EndTime = copyTime(je.EndTime)
	cp.StepExecutions = make([]*StepExecution, 0, len(je.StepExecutions))
	for _, se := range je.StepExecutions {
		sc := se.Snapshot()
		sc.JobExecution = &cp
		cp.StepExecutions = append(cp.StepExecutions, sc)
	}
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
