package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/angelmondragon/salespulse/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLock struct {
	acquired bool
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
	rows int64
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func (t *testJob) Rows() int64 { return t.rows }

func newTestService(t *testing.T, lock Lock, reg *prometheus.Registry, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "jobs-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(reg),
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return service
}

func TestRunOnceStopsAtFirstFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := &testJob{name: "load", rows: 2}
	failing := &testJob{name: "rfm", err: errors.New("boom")}
	last := &testJob{name: "trend"}
	lock := &fakeLock{}
	service := newTestService(t, lock, reg, first, failing, last)

	err := service.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "job rfm: boom")

	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 0, last.runs)
	assert.False(t, lock.acquired, "lock released after failure")

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "salespulse_job_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "salespulse_job_success_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "salespulse_job_failure_total"))
}

func TestRunOnceRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobs := []Job{&testJob{name: "load", rows: 2}, &testJob{name: "trend", rows: 14}}
	service := newTestService(t, &fakeLock{}, reg, jobs...)

	require.NoError(t, service.RunOnce(context.Background()))

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "salespulse_job_success_total"))
	assert.Equal(t, 0, testutil.CollectAndCount(reg, "salespulse_job_failure_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "salespulse_job_rows"))
}

func TestRunOnceHonoursLock(t *testing.T) {
	job := &testJob{name: "load"}
	service := newTestService(t, &fakeLock{acquired: true}, prometheus.NewRegistry(), job)

	err := service.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Equal(t, 0, job.runs)

	service = newTestService(t, &fakeLock{err: errors.New("redis down")}, prometheus.NewRegistry(), job)
	assert.ErrorContains(t, service.RunOnce(context.Background()), "redis down")
	assert.Equal(t, 0, job.runs)
}

func TestRunRepeatsUntilCanceled(t *testing.T) {
	job := &testJob{name: "trend", err: errors.New("transient")}
	service := newTestService(t, &fakeLock{}, prometheus.NewRegistry(), job)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	err := service.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, job.runs, 2, "failures do not stop the schedule")
}

func TestRunReportsEachCycle(t *testing.T) {
	var outcomes []error
	service := newTestService(t, &fakeLock{}, prometheus.NewRegistry(), &testJob{name: "load", err: errors.New("transient")})
	service.after = func(_ context.Context, err error) { outcomes = append(outcomes, err) }

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, service.Run(ctx), context.DeadlineExceeded)

	require.NotEmpty(t, outcomes)
	for _, err := range outcomes {
		assert.ErrorContains(t, err, "job load: transient")
	}
}

func TestRunRequiresInterval(t *testing.T) {
	service, err := NewService(ServiceParams{Logger: logger.New(logger.Options{})})
	require.NoError(t, err)
	assert.Error(t, service.Run(context.Background()))

	_, err = NewService(ServiceParams{})
	assert.Error(t, err)
}

// cancelJob simulates SIGINT arriving while the job runs.
type cancelJob struct{ cancel context.CancelFunc }

func (c cancelJob) Name() string { return "rfm" }

func (c cancelJob) Run(ctx context.Context) error {
	c.cancel()
	return ctx.Err()
}

func TestRunOnceReleasesLockAfterCancellation(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "sp:lock:test:report", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cleanupErr error
	cleaned := false
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "jobs-test"}),
		Registry: NewRegistry(cancelJob{cancel: cancel}),
		Lock:     lock,
		Cleanup: func(ctx context.Context) error {
			cleaned = true
			cleanupErr = ctx.Err()
			return nil
		},
	})
	require.NoError(t, err)

	require.ErrorIs(t, service.RunOnce(ctx), context.Canceled)
	assert.True(t, cleaned)
	assert.NoError(t, cleanupErr, "cleanup sees a live context")
	assert.Empty(t, store.data, "lock key removed")

	next, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "jobs-test"}),
		Registry: NewRegistry(&testJob{name: "load"}),
		Lock:     lock,
	})
	require.NoError(t, err)
	assert.NoError(t, next.RunOnce(context.Background()))
}
