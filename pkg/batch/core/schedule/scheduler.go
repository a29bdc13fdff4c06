// Package schedule launches jobs on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// RunTimestampKey is added to the parameters of every scheduled launch so that each fire
// creates a distinct JobInstance.
const RunTimestampKey = "run.timestamp"

// ParamsFunc builds the parameters of a launch fired at fireTime. It may be nil.
type ParamsFunc func(fireTime time.Time) model.JobParameters

// Entry describes a registered schedule.
type Entry struct {
	ID      cron.EntryID
	JobName string
	Spec    string
	Next    time.Time
	Prev    time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation evaluates schedules in loc instead of the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithWaitForCompletion keeps each fire callback running until its execution is terminal,
// so that Stop also waits for launched jobs.
func WithWaitForCompletion() Option {
	return func(s *Scheduler) { s.waitForCompletion = true }
}

// Scheduler fires job launches from 6-field cron expressions (with seconds) or descriptors
// such as "@every 1m". Launches are exclusive per job name: a fire that overlaps a running
// execution of the same job is rejected and dropped.
type Scheduler struct {
	launcher          usecase.JobLauncher
	location          *time.Location
	waitForCompletion bool
	now               func() time.Time

	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entries map[cron.EntryID]Entry
}

// NewScheduler creates a Scheduler launching through launcher.
func NewScheduler(launcher usecase.JobLauncher, opts ...Option) *Scheduler {
	s := &Scheduler{
		launcher: launcher,
		location: time.Local,
		now:      time.Now,
		ctx:      context.Background(),
		entries:  make(map[cron.EntryID]Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{}),
	)
	return s
}

// Register schedules jobName on spec.
func (s *Scheduler) Register(spec, jobName string, paramsFn ParamsFunc) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { s.fire(jobName, paramsFn) })
	if err != nil {
		return 0, fmt.Errorf("invalid schedule '%s' for job '%s': %w", spec, jobName, err)
	}
	s.mu.Lock()
	s.entries[id] = Entry{ID: id, JobName: jobName, Spec: spec}
	s.mu.Unlock()
	logger.Infof("Scheduler: job '%s' registered on '%s'.", jobName, spec)
	return id, nil
}

// Start begins firing. Launches run under ctx; cancelling it stops launched executions.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	logger.Infof("Scheduler started with %d schedule(s).", len(s.cron.Entries()))
}

// Stop stops firing and waits for running fire callbacks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Infof("Scheduler stopped.")
}

// Entries returns the registered schedules with their next and previous fire times.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, ce := range s.cron.Entries() {
		e, ok := s.entries[ce.ID]
		if !ok {
			continue
		}
		e.Next = ce.Next
		e.Prev = ce.Prev
		out = append(out, e)
	}
	return out
}

func (s *Scheduler) fire(jobName string, paramsFn ParamsFunc) {
	fireTime := s.now().In(s.location)
	params := model.NewJobParameters()
	if paramsFn != nil {
		params = paramsFn(fireTime).Copy()
	}
	params.PutLong(RunTimestampKey, fireTime.UnixMilli())

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	je, err := s.launcher.Launch(ctx, jobName, params, usecase.Exclusive())
	if err != nil {
		var running *exception.JobExecutionAlreadyRunningError
		if errors.As(err, &running) {
			logger.Warnf("Scheduler: skipped fire of job '%s' at %s: previous execution %s still running.",
				jobName, fireTime.Format(time.RFC3339), running.ExecutionID)
			return
		}
		logger.Errorf("Scheduler: launch of job '%s' failed: %v", jobName, err)
		return
	}
	logger.Infof("Scheduler: job '%s' fired. (Execution ID: %s)", jobName, je.ID)

	if s.waitForCompletion {
		final, err := s.launcher.Wait(context.WithoutCancel(ctx), je.ID)
		if err != nil {
			logger.Errorf("Scheduler: waiting for job '%s' failed: %v", jobName, err)
			return
		}
		logger.Infof("Scheduler: job '%s' finished with %s.", jobName, final.Status)
	}
}

// cronLogger routes robfig/cron messages to the batch logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
