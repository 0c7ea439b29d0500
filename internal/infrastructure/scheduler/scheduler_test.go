package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name   string
	runs   atomic.Int32
	err    error
	manual atomic.Bool
	runID  atomic.Value
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	j.manual.Store(IsManualRun(ctx))
	j.runID.Store(RunIDFromContext(ctx))
	return j.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestDailyScheduleNext(t *testing.T) {
	s := NewDailySchedule(0, 0, 5*time.Second, time.UTC)

	next := s.Next(time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 5, 0, time.UTC), next)

	// Inside the delay window the post for today is still ahead.
	next = s.Next(time.Date(2024, 5, 16, 0, 0, 2, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 5, 0, time.UTC), next)

	// Exactly on the firing instant the next one is tomorrow.
	next = s.Next(time.Date(2024, 5, 16, 0, 0, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 5, 0, time.UTC), next)

	assert.Equal(t, "@daily 00:00+5s UTC", s.String())
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)
	base := time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(10*time.Minute), s.Next(base))
	assert.Equal(t, "@every 10m0s", s.String())
}

func TestRegisterRejectsDuplicatesAndNil(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)

	job := &countingJob{name: "a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)
}

func TestRunNow(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := New(Config{Registerer: reg})
	require.NoError(t, err)

	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(bad, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, ok.manual.Load())
	assert.Equal(t, res.RunID, ok.runID.Load())

	_, err = s.RunNow(context.Background(), "bad")
	assert.EqualError(t, err, "boom")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "bad", jobs[0].Name)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	assert.Equal(t, int64(1), jobs[1].RunCount)

	assert.Len(t, s.GetHistory(0), 2)
	assert.Len(t, s.GetHistory(1), 1)

	assert.Equal(t, 1.0, counterValue(t, reg, "wordle_scheduler_job_runs_total", map[string]string{"job": "ok", "result": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "wordle_scheduler_job_runs_total", map[string]string{"job": "bad", "result": "failure"}))
}

func TestLoopRunsDueJobsOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 15, 23, 59, 0, 0, time.UTC)}
	s, err := New(Config{Now: clock.Now, Timezone: time.UTC, TickInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	job := &countingJob{name: "daily"}
	require.NoError(t, s.Register(job, NewDailySchedule(0, 0, 5*time.Second, time.UTC)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), job.runs.Load())

	clock.Set(time.Date(2024, 5, 16, 0, 0, 6, 0, time.UTC))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The next firing moved to tomorrow; further ticks do nothing.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())
	assert.False(t, job.manual.Load())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	jobs := s.ListJobs()
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 5, 0, time.UTC), jobs[0].NextRun)
}

func TestDisabledJobDoesNotRun(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)}
	s, err := New(Config{Now: clock.Now, Timezone: time.UTC, TickInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	job := &countingJob{name: "interval"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.DisableJob("interval"))
	assert.ErrorIs(t, s.DisableJob("nope"), ErrJobNotFound)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	clock.Set(clock.Now().Add(2 * time.Minute))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), job.runs.Load())

	res, err := s.RunNow(context.Background(), "interval")
	require.NoError(t, err)
	assert.True(t, res.Manual)
	assert.Equal(t, int32(1), job.runs.Load())
	assert.False(t, s.ListJobs()[0].Enabled)
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := g.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
