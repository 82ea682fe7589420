package bootstrap

import (
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/features/review"
	"github.com/mo-amir99/course-market-go/internal/features/settlement"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/database/migrations"
)

var registerOnce sync.Once

// Models lists every persisted type in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&course.Course{},
		&topic.Topic{},
		&lecture.Lecture{},
		&enrollment.Enrollment{},
		&settlement.WebhookEvent{},
		&review.Review{},
		&notification.Notification{},
	}
}

// RegisterMigrations adds the schema migrations to the registry once.
func RegisterMigrations() {
	registerOnce.Do(func() {
		migrations.RegisterAlways("schema", func(db *gorm.DB) error {
			return db.AutoMigrate(Models()...)
		})
		// the stale pending report scans only unsettled rows
		migrations.Register("enrollments_pending_index", func(db *gorm.DB) error {
			return db.Exec(`CREATE INDEX IF NOT EXISTS idx_enrollments_pending_created ON enrollments (created_at) WHERE payment_status = 'pending'`).Error
		})
	})
}

// ApplyDatabaseMigrations runs the registered migrations when enabled via configuration.
func ApplyDatabaseMigrations(db *gorm.DB, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Database.RunMigrations {
		logger.Info("database migrations skipped", slog.String("env_var", "MARKET_DB_RUN_MIGRATIONS=false"))
		return nil
	}

	RegisterMigrations()
	if err := migrations.Run(db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("database migrations applied successfully")
	return nil
}
