package database

import (
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"connection timed out",
	"eof",
	"bad connection",
	"invalid connection",
	"closed network connection",
	"connection lost",
	"server closed",
}

// ReconnectPlugin pings the pool before statements and waits for it to come back
// when the connection was lost. Pings are spaced at least checkInterval apart.
type ReconnectPlugin struct {
	logger        *slog.Logger
	maxRetries    int
	retryDelay    time.Duration
	checkInterval time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	reconnects atomic.Int64
}

// NewReconnectPlugin creates the plugin with three retries.
func NewReconnectPlugin(logger *slog.Logger) *ReconnectPlugin {
	return &ReconnectPlugin{
		logger:        logger,
		maxRetries:    3,
		retryDelay:    500 * time.Millisecond,
		checkInterval: 5 * time.Second,
	}
}

func (p *ReconnectPlugin) Name() string { return "reconnect_plugin" }

func (p *ReconnectPlugin) Initialize(db *gorm.DB) error {
	callbacks := db.Callback()
	registrations := []struct {
		register func(string, func(*gorm.DB)) error
		name     string
	}{
		{callbacks.Query().Before("gorm:query").Register, "reconnect:before_query"},
		{callbacks.Create().Before("gorm:create").Register, "reconnect:before_create"},
		{callbacks.Update().Before("gorm:update").Register, "reconnect:before_update"},
		{callbacks.Delete().Before("gorm:delete").Register, "reconnect:before_delete"},
		{callbacks.Row().Before("gorm:row").Register, "reconnect:before_row"},
		{callbacks.Raw().Before("gorm:raw").Register, "reconnect:before_raw"},
	}
	for _, r := range registrations {
		if err := r.register(r.name, p.check); err != nil {
			return err
		}
	}
	return nil
}

// Reconnects returns how many times the pool recovered.
func (p *ReconnectPlugin) Reconnects() int64 {
	return p.reconnects.Load()
}

func (p *ReconnectPlugin) check(db *gorm.DB) {
	p.mu.Lock()
	if time.Since(p.lastCheck) < p.checkInterval {
		p.mu.Unlock()
		return
	}
	p.lastCheck = time.Now()
	p.mu.Unlock()

	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	if err := sqlDB.Ping(); err != nil && isConnectionError(err) {
		p.logger.Warn("database connection lost, attempting to reconnect", slog.String("error", err.Error()))
		if !p.reconnect(sqlDB) {
			p.logger.Error("database reconnection failed after retries")
		}
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func (p *ReconnectPlugin) reconnect(sqlDB *sql.DB) bool {
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		time.Sleep(p.retryDelay * time.Duration(attempt))

		if err := sqlDB.Ping(); err == nil {
			total := p.reconnects.Add(1)
			p.logger.Info("database reconnection successful", slog.Int64("total_reconnects", total))
			return true
		}

		p.logger.Warn("reconnection attempt failed", slog.Int("attempt", attempt), slog.Int("max_retries", p.maxRetries))
	}
	return false
}
