package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// EnsureDefaultAdmin creates the configured administrator when it does not exist yet.
// An existing account is promoted and reactivated but its password is left alone.
func EnsureDefaultAdmin(db *gorm.DB, cfg config.AdminConfig, logger *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || cfg.Password == "" {
		logger.Info("default admin not configured, skipping")
		return nil
	}

	var existing user.User
	err := db.Where("LOWER(email) = ?", email).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if _, err := user.Create(db, user.CreateInput{
			FullName: cfg.FullName,
			Email:    email,
			Password: cfg.Password,
			UserType: types.UserTypeAdmin,
		}); err != nil {
			if isUndefinedTableError(err) {
				logger.Warn("default admin skipped - users table missing", slog.String("email", email))
				return nil
			}
			return fmt.Errorf("create admin: %w", err)
		}
		logger.Info("default admin created", slog.String("email", email))
		return nil

	case err != nil:
		if isUndefinedTableError(err) {
			logger.Warn("default admin skipped - users table missing", slog.String("email", email))
			return nil
		}
		return fmt.Errorf("get admin: %w", err)
	}

	updates := map[string]interface{}{}
	if existing.UserType != types.UserTypeAdmin {
		updates["user_type"] = types.UserTypeAdmin
	}
	if !existing.Active {
		updates["is_active"] = true
	}
	if len(updates) == 0 {
		return nil
	}

	if err := db.Model(&existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	logger.Info("default admin synchronized", slog.String("email", email))
	return nil
}

func isUndefinedTableError(err error) bool {
	message := err.Error()
	return strings.Contains(message, `relation "users" does not exist`) ||
		strings.Contains(message, "no such table: users")
}
