package migrations

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Applied records a one-shot migration that has run.
type Applied struct {
	Name      string    `gorm:"primaryKey;size:120"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (Applied) TableName() string { return "schema_migrations" }

type namedMigration struct {
	name   string
	fn     func(*gorm.DB) error
	always bool
}

var (
	registryMu sync.RWMutex
	registry   []namedMigration
)

// Register adds a one-shot migration. It runs once and is recorded in schema_migrations.
func Register(name string, fn func(*gorm.DB) error) {
	add(namedMigration{name: name, fn: fn})
}

// RegisterAlways adds a migration that runs on every start, such as an idempotent
// schema sync.
func RegisterAlways(name string, fn func(*gorm.DB) error) {
	add(namedMigration{name: name, fn: fn, always: true})
}

func add(m namedMigration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, m)
}

// Run executes registered migrations in registration order, skipping one-shot
// migrations that were already applied.
func Run(db *gorm.DB, log *slog.Logger) error {
	registryMu.RLock()
	pending := make([]namedMigration, len(registry))
	copy(pending, registry)
	registryMu.RUnlock()

	if len(pending) == 0 {
		log.Info("no database migrations registered")
		return nil
	}

	if err := db.AutoMigrate(&Applied{}); err != nil {
		return fmt.Errorf("prepare schema_migrations: %w", err)
	}

	for _, m := range pending {
		if !m.always {
			var count int64
			if err := db.Model(&Applied{}).Where("name = ?", m.name).Count(&count).Error; err != nil {
				return fmt.Errorf("check migration %s: %w", m.name, err)
			}
			if count > 0 {
				log.Debug("migration already applied", slog.String("name", m.name))
				continue
			}
		}

		log.Info("running migration", slog.String("name", m.name))
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.fn(tx); err != nil {
				return err
			}
			if m.always {
				return nil
			}
			return tx.Create(&Applied{Name: m.name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}

	return nil
}
