package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingJob struct{ runs atomic.Int32 }

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Execute(context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestSchedulerRunsJobsOnInterval(t *testing.T) {
	job := &countingJob{}
	s := NewScheduler(discardLogger())
	s.AddJob(job, 10*time.Millisecond)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestRunOnceUnknownJob(t *testing.T) {
	s := NewScheduler(discardLogger())
	assert.Error(t, s.RunOnce("missing"))
}

func TestExpiredNotificationsJob(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var seen time.Time
	job := NewExpiredNotificationsJob(func(_ context.Context, now time.Time) (int64, error) {
		seen = now
		return 4, nil
	}, discardLogger())
	job.now = func() time.Time { return fixed }

	require.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, fixed, seen)

	failing := NewExpiredNotificationsJob(func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("db down")
	}, discardLogger())
	assert.Error(t, failing.Execute(context.Background()))
}

func TestStalePendingJobAlertsOnlyWhenRowsExist(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	stale := int64(0)
	alerts := 0
	var cutoffSeen time.Time

	job := NewStalePendingJob(
		func(_ context.Context, cutoff time.Time) (int64, error) {
			cutoffSeen = cutoff
			return stale, nil
		},
		func(context.Context, int64, time.Time) error {
			alerts++
			return nil
		},
		24*time.Hour,
		discardLogger(),
	)
	job.now = func() time.Time { return fixed }

	require.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, 0, alerts)
	assert.Equal(t, fixed.Add(-24*time.Hour), cutoffSeen)

	stale = 3
	require.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, 1, alerts)
}
