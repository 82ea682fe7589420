package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/jobs"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

const (
	purgeInterval        = time.Hour
	stalePendingInterval = 6 * time.Hour
)

// NewScheduler registers the background jobs. The caller starts and stops it.
func NewScheduler(db *gorm.DB, cfg config.JobsConfig, notifier notification.Sender, logger *slog.Logger) *jobs.Scheduler {
	scheduler := jobs.NewScheduler(logger)

	scheduler.AddJob(jobs.NewExpiredNotificationsJob(func(ctx context.Context, now time.Time) (int64, error) {
		return notification.PurgeExpired(db.WithContext(ctx), now)
	}, logger), purgeInterval)

	age := time.Duration(cfg.StalePendingHours) * time.Hour
	scheduler.AddJob(jobs.NewStalePendingJob(
		func(ctx context.Context, cutoff time.Time) (int64, error) {
			return enrollment.CountStalePending(db.WithContext(ctx), cutoff)
		},
		func(ctx context.Context, count int64, cutoff time.Time) error {
			return notifier.NotifyRole(ctx, types.UserTypeAdmin, notification.Message{
				Kind:     notification.KindSystem,
				Title:    "Unsettled enrollments",
				Body:     fmt.Sprintf("%d enrollments have been pending since before %s.", count, cutoff.Format(time.RFC3339)),
				Priority: types.PriorityMedium,
			})
		},
		age,
		logger,
	), stalePendingInterval)

	return scheduler
}
