// Package incrementer provides job parameters incrementers.
package incrementer

import (
	"time"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

// RunIDKey is the parameter maintained by RunIDIncrementer.
const RunIDKey = "run.id"

// RunIDIncrementer increments the long parameter run.id, starting at 1.
type RunIDIncrementer struct {
	key string
}

// NewRunIDIncrementer creates a RunIDIncrementer for run.id.
func NewRunIDIncrementer() *RunIDIncrementer {
	return &RunIDIncrementer{key: RunIDKey}
}

// GetNext implements port.JobParametersIncrementer.
func (r *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()
	id, _ := params.GetLong(r.key)
	next.PutLong(r.key, id+1)
	return next
}

// TimestampIncrementer stores the current time, in epoch milliseconds, under its key.
type TimestampIncrementer struct {
	key string
	now func() time.Time
}

// NewTimestampIncrementer creates a TimestampIncrementer writing key.
func NewTimestampIncrementer(key string) *TimestampIncrementer {
	return &TimestampIncrementer{key: key, now: time.Now}
}

// GetNext implements port.JobParametersIncrementer.
func (t *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()
	next.PutLong(t.key, t.now().UnixMilli())
	return next
}

var (
	_ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)
	_ port.JobParametersIncrementer = (*TimestampIncrementer)(nil)
)
