package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

type fakeLauncher struct {
	mu       sync.Mutex
	running  bool
	launched []model.JobParameters
	opts     int
	waited   []string
}

func (f *fakeLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters, opts ...usecase.LaunchOption) (*model.JobExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = len(opts)
	if f.running {
		return nil, exception.NewJobExecutionAlreadyRunningError(jobName, "exec-1")
	}
	f.running = true
	f.launched = append(f.launched, params)
	return &model.JobExecution{ID: "exec-1", JobName: jobName, Status: model.BatchStatusStarting}, nil
}

func (f *fakeLauncher) Wait(ctx context.Context, executionID string) (*model.JobExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = append(f.waited, executionID)
	return &model.JobExecution{ID: executionID, Status: model.BatchStatusCompleted}, nil
}

func TestScheduler_FireAddsRunTimestampAndIsExclusive(t *testing.T) {
	launcher := &fakeLauncher{}
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(launcher, WithLocation(time.UTC))
	s.now = func() time.Time { return fixed }

	paramsFn := func(fireTime time.Time) model.JobParameters {
		p := model.NewJobParameters()
		p.PutLong("requestTime", fireTime.UnixMilli())
		return p
	}
	s.fire("helloWorldJob", paramsFn)
	s.fire("helloWorldJob", paramsFn)

	require.Len(t, launcher.launched, 1, "overlapping fire must be dropped")
	ts, ok := launcher.launched[0].GetLong(RunTimestampKey)
	require.True(t, ok)
	assert.Equal(t, fixed.UnixMilli(), ts)
	rt, _ := launcher.launched[0].GetLong("requestTime")
	assert.Equal(t, fixed.UnixMilli(), rt)
	assert.Equal(t, 1, launcher.opts, "launches are exclusive")
}

func TestScheduler_RegisterAndEntries(t *testing.T) {
	s := NewScheduler(&fakeLauncher{}, WithLocation(time.UTC))

	_, err := s.Register("not a cron", "job", nil)
	assert.Error(t, err)
	_, err = s.Register("0 */1 * * *", "job", nil)
	assert.Error(t, err, "five fields are rejected when seconds are required")

	id, err := s.Register("0 */1 * * * *", "helloWorldJob", nil)
	require.NoError(t, err)
	_, err = s.Register("@every 1h", "otherJob", nil)
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	entries := s.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		assert.Equal(t, "helloWorldJob", e.JobName)
		assert.Equal(t, 0, e.Next.Second())
		assert.WithinDuration(t, time.Now(), e.Next, time.Minute+time.Second)
	}
}

func TestScheduler_WaitForCompletion(t *testing.T) {
	launcher := &fakeLauncher{}
	s := NewScheduler(launcher, WithLocation(time.UTC))
	s.fire("helloWorldJob", nil)
	assert.Empty(t, launcher.waited, "fires return once the job is launched")

	launcher = &fakeLauncher{}
	s = NewScheduler(launcher, WithLocation(time.UTC), WithWaitForCompletion())
	s.fire("helloWorldJob", nil)
	assert.Equal(t, []string{"exec-1"}, launcher.waited)
}
