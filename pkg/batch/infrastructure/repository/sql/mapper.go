package sql

import (
	"time"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

// Times are stored in UTC so that ordering by time columns is consistent across drivers.

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func fromDomainJobInstance(ji *model.JobInstance) *JobInstanceEntity {
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		Parameters:     ji.Parameters,
		ParametersHash: ji.ParametersHash,
		CreateTime:     utc(ji.CreateTime),
		Version:        ji.Version,
	}
}

func toDomainJobInstance(entity *JobInstanceEntity) *model.JobInstance {
	return &model.JobInstance{
		ID:             entity.ID,
		JobName:        entity.JobName,
		Parameters:     entity.Parameters,
		ParametersHash: entity.ParametersHash,
		CreateTime:     entity.CreateTime,
		Version:        entity.Version,
	}
}

func fromDomainJobExecution(je *model.JobExecution) *JobExecutionEntity {
	failures := je.Failures
	if failures == nil {
		failures = model.FailureList{}
	}
	return &JobExecutionEntity{
		ID:               je.ID,
		JobInstanceID:    je.JobInstanceID,
		JobName:          je.JobName,
		Parameters:       je.Parameters,
		Status:           je.Status,
		ExitStatus:       je.ExitStatus,
		CreateTime:       utc(je.CreateTime),
		StartTime:        utcPtr(je.StartTime),
		EndTime:          utcPtr(je.EndTime),
		LastUpdated:      utc(je.LastUpdated),
		Failures:         failures,
		ExecutionContext: je.ExecutionContext,
		CurrentStepName:  je.CurrentStepName,
		RestartCount:     je.RestartCount,
		Version:          je.Version,
	}
}

// toDomainJobExecution maps an entity without its step executions.
func toDomainJobExecution(entity *JobExecutionEntity) *model.JobExecution {
	ec := entity.ExecutionContext
	if ec == nil {
		ec = model.NewExecutionContext()
	}
	return &model.JobExecution{
		ID:               entity.ID,
		JobInstanceID:    entity.JobInstanceID,
		JobName:          entity.JobName,
		Parameters:       entity.Parameters,
		Status:           entity.Status,
		ExitStatus:       entity.ExitStatus,
		CreateTime:       entity.CreateTime,
		StartTime:        entity.StartTime,
		EndTime:          entity.EndTime,
		LastUpdated:      entity.LastUpdated,
		Failures:         entity.Failures,
		ExecutionContext: ec,
		StepExecutions:   make([]*model.StepExecution, 0),
		CurrentStepName:  entity.CurrentStepName,
		RestartCount:     entity.RestartCount,
		Version:          entity.Version,
	}
}

func fromDomainStepExecution(se *model.StepExecution) *StepExecutionEntity {
	failures := se.Failures
	if failures == nil {
		failures = model.FailureList{}
	}
	return &StepExecutionEntity{
		ID:               se.ID,
		StepName:         se.StepName,
		JobExecutionID:   se.JobExecutionID,
		Status:           se.Status,
		ExitStatus:       se.ExitStatus,
		StartTime:        utc(se.StartTime),
		EndTime:          utcPtr(se.EndTime),
		LastUpdated:      utc(se.LastUpdated),
		Failures:         failures,
		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		FilterCount:      se.FilterCount,
		ReadSkipCount:    se.ReadSkipCount,
		ProcessSkipCount: se.ProcessSkipCount,
		WriteSkipCount:   se.WriteSkipCount,
		ExecutionContext: se.ExecutionContext,
		Version:          se.Version,
	}
}

// toDomainStepExecution maps an entity; the caller links JobExecution.
func toDomainStepExecution(entity *StepExecutionEntity) *model.StepExecution {
	ec := entity.ExecutionContext
	if ec == nil {
		ec = model.NewExecutionContext()
	}
	return &model.StepExecution{
		ID:               entity.ID,
		StepName:         entity.StepName,
		JobExecutionID:   entity.JobExecutionID,
		Status:           entity.Status,
		ExitStatus:       entity.ExitStatus,
		StartTime:        entity.StartTime,
		EndTime:          entity.EndTime,
		LastUpdated:      entity.LastUpdated,
		Failures:         entity.Failures,
		ReadCount:        entity.ReadCount,
		WriteCount:       entity.WriteCount,
		CommitCount:      entity.CommitCount,
		RollbackCount:    entity.RollbackCount,
		FilterCount:      entity.FilterCount,
		ReadSkipCount:    entity.ReadSkipCount,
		ProcessSkipCount: entity.ProcessSkipCount,
		WriteSkipCount:   entity.WriteSkipCount,
		ExecutionContext: ec,
		Version:          entity.Version,
	}
}
