package sql

import (
	"time"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

// Table names of the metadata schema. The tables are created by the framework migrations.
const (
	jobInstanceTable   = "batch_job_instance"
	jobExecutionTable  = "batch_job_execution"
	stepExecutionTable = "batch_step_execution"
)

// JobInstanceEntity is a schema model used for persistence.
type JobInstanceEntity struct {
	ID             string              `gorm:"column:id;primaryKey"`
	JobName        string              `gorm:"column:job_name"`
	Parameters     model.JobParameters `gorm:"column:parameters"`
	ParametersHash string              `gorm:"column:parameters_hash"`
	CreateTime     time.Time           `gorm:"column:create_time"`
	Version        int                 `gorm:"column:version"`
}

func (JobInstanceEntity) TableName() string {
	return jobInstanceTable
}

// JobExecutionEntity is a schema model used for persistence.
// Step executions live in their own table and are loaded separately.
type JobExecutionEntity struct {
	ID               string                 `gorm:"column:id;primaryKey"`
	JobInstanceID    string                 `gorm:"column:job_instance_id"`
	JobName          string                 `gorm:"column:job_name"`
	Parameters       model.JobParameters    `gorm:"column:parameters"`
	Status           model.JobStatus        `gorm:"column:status"`
	ExitStatus       model.ExitStatus       `gorm:"column:exit_status"`
	CreateTime       time.Time              `gorm:"column:create_time"`
	StartTime        *time.Time             `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	LastUpdated      time.Time              `gorm:"column:last_updated"`
	Failures         model.FailureList      `gorm:"column:failures"`
	ExecutionContext model.ExecutionContext `gorm:"column:execution_context"`
	CurrentStepName  string                 `gorm:"column:current_step_name"`
	RestartCount     int                    `gorm:"column:restart_count"`
	Version          int                    `gorm:"column:version"`
}

func (JobExecutionEntity) TableName() string {
	return jobExecutionTable
}

// StepExecutionEntity is a schema model used for persistence.
type StepExecutionEntity struct {
	ID               string                 `gorm:"column:id;primaryKey"`
	StepName         string                 `gorm:"column:step_name"`
	JobExecutionID   string                 `gorm:"column:job_execution_id"`
	Status           model.JobStatus        `gorm:"column:status"`
	ExitStatus       model.ExitStatus       `gorm:"column:exit_status"`
	StartTime        time.Time              `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	LastUpdated      time.Time              `gorm:"column:last_updated"`
	Failures         model.FailureList      `gorm:"column:failures"`
	ReadCount        int                    `gorm:"column:read_count"`
	WriteCount       int                    `gorm:"column:write_count"`
	CommitCount      int                    `gorm:"column:commit_count"`
	RollbackCount    int                    `gorm:"column:rollback_count"`
	FilterCount      int                    `gorm:"column:filter_count"`
	ReadSkipCount    int                    `gorm:"column:read_skip_count"`
	ProcessSkipCount int                    `gorm:"column:process_skip_count"`
	WriteSkipCount   int                    `gorm:"column:write_skip_count"`
	ExecutionContext model.ExecutionContext `gorm:"column:execution_context"`
	Version          int                    `gorm:"column:version"`
}

func (StepExecutionEntity) TableName() string {
	return stepExecutionTable
}

// stepExecutionUpdateColumns are rewritten when a StepExecution is saved again.
var stepExecutionUpdateColumns = []string{
	"status", "exit_status", "start_time", "end_time", "last_updated", "failures",
	"read_count", "write_count", "commit_count", "rollback_count", "filter_count",
	"read_skip_count", "process_skip_count", "write_skip_count", "execution_context", "version",
}
