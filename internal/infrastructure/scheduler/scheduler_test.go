package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job " + j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func TestRegister(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, "*/5 * * * *"))
	assert.ErrorIs(t, s.Register(job, "@hourly"), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(funcJob{name: "b"}, "not a spec"), ErrInvalidSpec)
	assert.ErrorIs(t, s.Register(nil, "@hourly"), ErrNilJob)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "*/5 * * * *", jobs[0].Spec)
	assert.True(t, jobs[0].Enabled)

	require.NoError(t, s.Unregister("a"))
	assert.ErrorIs(t, s.Unregister("a"), ErrJobNotFound)
}

func TestRunNow_RecordsResults(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	boom := errors.New("boom")

	require.NoError(t, s.Register(funcJob{name: "ok", run: func(context.Context) error { return nil }}, "@daily"))
	require.NoError(t, s.Register(funcJob{name: "fail", run: func(context.Context) error { return boom }}, "@daily"))
	require.NoError(t, s.Register(funcJob{name: "panic", run: func(context.Context) error { panic("oops") }}, "@daily"))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)

	res, err = s.RunNow(context.Background(), "panic")
	assert.ErrorIs(t, err, ErrJobPanic)
	assert.False(t, res.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, "ok", history[0].JobName)
	assert.Len(t, s.History(2), 2)

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalExecutions)
	assert.Equal(t, int64(2), snap.TotalFailures)
	assert.Equal(t, int64(1), snap.FailuresByJob["panic"])

	for _, info := range s.ListJobs() {
		assert.Equal(t, int64(1), info.RunCount, info.Name)
	}
}

func TestHistory_IsBounded(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.MaxHistorySize = 2
	s := NewScheduler(cfg)
	require.NoError(t, s.Register(funcJob{name: "a", run: func(context.Context) error { return nil }}, "@daily"))

	for range 5 {
		_, err := s.RunNow(context.Background(), "a")
		require.NoError(t, err)
	}
	assert.Len(t, s.History(0), 2)
}

func TestStartStop_FiresAndWaits(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	started := make(chan struct{}, 1)
	var finished atomic.Bool
	job := funcJob{name: "tick", run: func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		finished.Store(true)
		return ctx.Err()
	}}
	require.NoError(t, s.Register(job, "@every 1s"))

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())
	assert.False(t, s.ListJobs()[0].NextRun.IsZero())

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}

	require.NoError(t, s.Stop())
	assert.True(t, finished.Load(), "Stop waits for running jobs")
	assert.False(t, s.IsRunning())
}

func TestDisabledJobDoesNotFire(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	var runs atomic.Int32
	require.NoError(t, s.Register(funcJob{name: "off", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, "@every 1s"))
	require.NoError(t, s.DisableJob("off"))
	assert.ErrorIs(t, s.EnableJob("nope"), ErrJobNotFound)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(1500 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, runs.Load())
}
