package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

func newTestJobExecution(t *testing.T, status model.JobStatus) *model.JobExecution {
	t.Helper()
	inst, err := model.NewJobInstance("testJob", model.NewJobParameters())
	require.NoError(t, err)
	je := model.NewJobExecution(inst)
	je.Status = status
	return je
}

func TestJobExecution_TransitionTo(t *testing.T) {
	valid := [][2]model.JobStatus{
		{model.BatchStatusStarting, model.BatchStatusStarted},
		{model.BatchStatusStarting, model.BatchStatusFailed},
		{model.BatchStatusStarted, model.BatchStatusStopping},
		{model.BatchStatusStarted, model.BatchStatusCompleted},
		{model.BatchStatusStarted, model.BatchStatusStopped},
		{model.BatchStatusStopping, model.BatchStatusStopped},
	}
	for _, tr := range valid {
		je := newTestJobExecution(t, tr[0])
		assert.NoError(t, je.TransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
		assert.Equal(t, tr[1], je.Status)
	}

	invalid := [][2]model.JobStatus{
		{model.BatchStatusCompleted, model.BatchStatusStarted},
		{model.BatchStatusCompleted, model.BatchStatusFailed},
		{model.BatchStatusFailed, model.BatchStatusStarted},
		{model.BatchStatusStopped, model.BatchStatusCompleted},
		{model.BatchStatusStopping, model.BatchStatusCompleted},
		{model.BatchStatusCompleted, model.BatchStatusCompleted},
	}
	for _, tr := range invalid {
		je := newTestJobExecution(t, tr[0])
		assert.Error(t, je.TransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
		assert.Equal(t, tr[0], je.Status)
	}
}

func TestJobExecution_MarkHelpers(t *testing.T) {
	je := newTestJobExecution(t, model.BatchStatusStarting)
	je.MarkAsStarted()
	require.NotNil(t, je.StartTime)
	assert.Equal(t, model.BatchStatusStarted, je.Status)

	je.MarkAsFailed(errors.New("boom"))
	je.AddFailureException(errors.New("boom"))
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, model.ExitStatusFailed, je.ExitStatus)
	assert.Equal(t, model.FailureList{"boom"}, je.Failures)
	require.NotNil(t, je.EndTime)

	// a finished execution ignores later marks
	je.MarkAsCompleted("")
	assert.Equal(t, model.BatchStatusFailed, je.Status)
}

func TestStepExecution_CustomExitStatusSurvivesCompletion(t *testing.T) {
	je := newTestJobExecution(t, model.BatchStatusStarted)
	se := model.NewStepExecution("step", je)
	se.MarkAsStarted()
	se.SetExitStatus("RETRY")
	se.MarkAsCompleted()

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitStatus("RETRY"), se.ExitStatus)

	se2 := model.NewStepExecution("step2", je)
	se2.MarkAsStarted()
	se2.MarkAsCompleted()
	assert.Equal(t, model.ExitStatusCompleted, se2.ExitStatus)
}

func TestJobParameters_TypedValuesAndHash(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := model.NewJobParameters()
	p.Put("run.id", 3)
	p.Put("ratio", 0.5)
	p.PutString("fileName", "players.csv")
	p.PutDate("requestTime", ts)

	typ, ok := p.Type("run.id")
	require.True(t, ok)
	assert.Equal(t, model.ParameterTypeLong, typ)
	n, ok := p.GetLong("run.id")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	_, ok = p.GetLong("ratio")
	assert.False(t, ok)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	var decoded model.JobParameters
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, p.Equal(decoded))
	got, ok := decoded.GetDate("requestTime")
	require.True(t, ok)
	assert.True(t, ts.Equal(got))

	h1, err := p.Hash()
	require.NoError(t, err)
	h2, err := decoded.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := p.Copy()
	other.PutLong("run.id", 4)
	h3, err := other.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
	assert.False(t, p.Equal(other))
	assert.True(t, p.Contains(model.JobParameters{Params: map[string]interface{}{"fileName": "players.csv"}}))

	// a string "3" and a long 3 are different parameters
	s := model.NewJobParameters()
	s.PutString("run.id", "3")
	l := model.NewJobParameters()
	l.PutLong("run.id", 3)
	assert.False(t, s.Equal(l))
}

func TestJobParameters_ScanAndMaskedString(t *testing.T) {
	p := model.NewJobParameters()
	p.PutString("password", "hunter2")
	p.PutLong("run.id", 1)

	v, err := p.Value()
	require.NoError(t, err)
	var scanned model.JobParameters
	require.NoError(t, scanned.Scan(v))
	assert.True(t, p.Equal(scanned))

	assert.Equal(t, "{password=********, run.id=1}", p.String())
}

func TestExecutionContext_NestedAndCopy(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.PutNested("reader.position", 10)
	ec.Put("flat.key", "x")

	v, ok := ec.GetNested("reader.position")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	v, ok = ec.GetNested("flat.key")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = ec.GetNested("reader.missing")
	assert.False(t, ok)

	cp := ec.Copy()
	cp.PutNested("reader.position", 20)
	v, _ = ec.GetNested("reader.position")
	assert.Equal(t, 10, v, "copy must not alias nested maps")

	val, err := ec.Value()
	require.NoError(t, err)
	var scanned model.ExecutionContext
	require.NoError(t, scanned.Scan(val))
	n, ok := model.ExecutionContext(scanned["reader"].(map[string]interface{})).GetInt("position")
	assert.True(t, ok)
	assert.Equal(t, 10, n)
}

func TestExecutionContextPromotion_Apply(t *testing.T) {
	step := model.NewExecutionContext()
	step.Put("someKey", "hello!!")
	step.Put("local", 1)
	job := model.NewExecutionContext()

	promo := model.NewExecutionContextPromotion("someKey", "absent")
	promo.JobLevelKeys["local"] = "renamed"

	promoted := promo.Apply(step, job)
	assert.Equal(t, []string{"renamed", "someKey"}, promoted)
	assert.Equal(t, "hello!!", job["someKey"])
	assert.Equal(t, 1, job["renamed"])
	assert.False(t, job.ContainsKey("local"))
}

func TestFlowDefinition_ExactMatchBeatsWildcard(t *testing.T) {
	fd := model.NewFlowDefinition("A")
	fd.AddTransitionRule("A", "*", "D", false, false, false)
	fd.AddTransitionRule("A", "FAILED", "C", false, false, false)
	fd.AddTransitionRule("A", "COMPLETED", "B", false, false, false)

	rule, ok := fd.GetTransitionRule("A", model.ExitStatusFailed)
	require.True(t, ok)
	assert.Equal(t, "C", rule.Transition.To)

	rule, ok = fd.GetTransitionRule("A", model.ExitStatusCompleted)
	require.True(t, ok)
	assert.Equal(t, "B", rule.Transition.To)

	rule, ok = fd.GetTransitionRule("A", "RETRY")
	require.True(t, ok)
	assert.Equal(t, "D", rule.Transition.To)

	_, ok = fd.GetTransitionRule("B", model.ExitStatusCompleted)
	assert.False(t, ok)
}

func TestJobExecution_SnapshotIsDetached(t *testing.T) {
	je := newTestJobExecution(t, model.BatchStatusStarted)
	se := model.NewStepExecution("s1", je)
	je.AddStepExecution(se)
	je.ExecutionContext.Put("k", "v")

	snap := je.Snapshot()
	je.ExecutionContext.Put("k", "changed")
	se.ReadCount = 5

	assert.Equal(t, "v", snap.ExecutionContext["k"])
	require.Len(t, snap.StepExecutions, 1)
	assert.Equal(t, 0, snap.StepExecutions[0].ReadCount)
	assert.Same(t, snap, snap.StepExecutions[0].JobExecution)
}
