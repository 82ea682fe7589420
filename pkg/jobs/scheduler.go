package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mo-amir99/course-market-go/pkg/metrics"
)

// Job represents a background job.
type Job interface {
	Name() string
	Execute(ctx context.Context) error
}

// Scheduler manages and executes background jobs.
type Scheduler struct {
	jobs    map[string]*ScheduledJob
	mu      sync.RWMutex
	logger  *slog.Logger
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// ScheduledJob wraps a job with its schedule.
type ScheduledJob struct {
	Job      Job
	Interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
}

// NewScheduler creates a new job scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*ScheduledJob),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob adds a job to the scheduler with an interval.
func (s *Scheduler) AddJob(job Job, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.Name()] = &ScheduledJob{
		Job:      job,
		Interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts all scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	jobs := make([]*ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	for _, scheduledJob := range jobs {
		go s.runJob(scheduledJob)
	}

	s.logger.Info("job scheduler started", "jobs", len(jobs))
}

// runJob runs a single job on its schedule.
func (s *Scheduler) runJob(scheduled *ScheduledJob) {
	ticker := time.NewTicker(scheduled.Interval)
	scheduled.ticker = ticker

	s.logger.Info("starting job", "name", scheduled.Job.Name(), "interval", scheduled.Interval)

	for {
		select {
		case <-ticker.C:
			s.executeJob(scheduled.Job)
		case <-scheduled.stopCh:
			ticker.Stop()
			return
		case <-s.ctx.Done():
			ticker.Stop()
			return
		}
	}
}

// executeJob executes a single job with error handling.
func (s *Scheduler) executeJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panic", "name", job.Name(), "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	s.logger.Debug("executing job", "name", job.Name())

	start := time.Now()
	if err := job.Execute(ctx); err != nil {
		s.logger.Error("job execution failed", "name", job.Name(), "error", err, "duration", time.Since(start))
	} else {
		s.logger.Debug("job completed", "name", job.Name(), "duration", time.Since(start))
	}
}

// Stop stops all scheduled jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()

	for _, job := range s.jobs {
		close(job.stopCh)
	}

	s.running = false
	s.logger.Info("job scheduler stopped")
}

// RunOnce executes a job immediately.
func (s *Scheduler) RunOnce(jobName string) error {
	s.mu.RLock()
	scheduled, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job not found: %s", jobName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	return scheduled.Job.Execute(ctx)
}

// ExpiredNotificationsJob deletes notifications past their expiry.
type ExpiredNotificationsJob struct {
	purge  func(ctx context.Context, now time.Time) (int64, error)
	logger *slog.Logger
	now    func() time.Time
}

// NewExpiredNotificationsJob creates the purge job around a store function.
func NewExpiredNotificationsJob(purge func(ctx context.Context, now time.Time) (int64, error), logger *slog.Logger) *ExpiredNotificationsJob {
	return &ExpiredNotificationsJob{purge: purge, logger: logger, now: time.Now}
}

// Name returns the job name.
func (j *ExpiredNotificationsJob) Name() string {
	return "notification_purge"
}

// Execute removes expired notifications.
func (j *ExpiredNotificationsJob) Execute(ctx context.Context) error {
	removed, err := j.purge(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to purge notifications: %w", err)
	}
	if removed > 0 {
		j.logger.Info("expired notifications purged", "count", removed)
	}
	return nil
}

// StalePendingJob reports pending enrollments that never settled. Rows are left
// untouched; admins supersede them explicitly.
type StalePendingJob struct {
	count  func(ctx context.Context, cutoff time.Time) (int64, error)
	alert  func(ctx context.Context, count int64, cutoff time.Time) error
	age    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewStalePendingJob creates the report job. alert may be nil.
func NewStalePendingJob(
	count func(ctx context.Context, cutoff time.Time) (int64, error),
	alert func(ctx context.Context, count int64, cutoff time.Time) error,
	age time.Duration,
	logger *slog.Logger,
) *StalePendingJob {
	return &StalePendingJob{count: count, alert: alert, age: age, logger: logger, now: time.Now}
}

// Name returns the job name.
func (j *StalePendingJob) Name() string {
	return "stale_pending_enrollments"
}

// Execute counts stale rows, updates the gauge and alerts when any exist.
func (j *StalePendingJob) Execute(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	count, err := j.count(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to count stale pending enrollments: %w", err)
	}

	metrics.SetStalePending(count)
	if count == 0 {
		return nil
	}

	j.logger.Warn("stale pending enrollments", "count", count, "olderThan", cutoff)
	if j.alert == nil {
		return nil
	}
	if err := j.alert(ctx, count, cutoff); err != nil {
		return fmt.Errorf("failed to alert admins: %w", err)
	}
	return nil
}
