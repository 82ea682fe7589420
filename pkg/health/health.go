package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// RealtimeStats reports open sockets and connected users.
type RealtimeStats interface {
	Stats() (connections, users int)
}

// Handler serves liveness, readiness and runtime statistics.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	checks   map[string]Check
	realtime RealtimeStats
}

// NewHandler creates a health handler. The database check is always present.
func NewHandler(db *gorm.DB, logger *slog.Logger, realtime RealtimeStats) *Handler {
	h := &Handler{db: db, logger: logger, checks: map[string]Check{}, realtime: realtime}
	h.checks["database"] = h.pingDatabase
	return h
}

// AddCheck registers an extra readiness check.
func (h *Handler) AddCheck(name string, check Check) {
	h.checks[name] = check
}

// HealthResponse is the body of every probe.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now(), Version: Version})
}

// Ready runs every registered check and answers 503 when any fails.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ready"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Error("readiness check failed", slog.String("check", name), slog.String("error", err.Error()))
			results[name] = "unhealthy"
			status = "not_ready"
			continue
		}
		results[name] = "ok"
	}

	code := http.StatusOK
	if status != "ready" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{Status: status, Timestamp: time.Now(), Version: Version, Checks: results})
}

// Version returns build information.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
	})
}

// DBStats returns connection pool statistics.
func (h *Handler) DBStats(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get database instance"})
		return
	}

	stats := sqlDB.Stats()
	var reconnects int64
	if plugin, ok := h.db.Config.Plugins["reconnect_plugin"].(interface{ Reconnects() int64 }); ok {
		reconnects = plugin.Reconnects()
	}
	c.JSON(http.StatusOK, gin.H{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
		"reconnects":           reconnects,
	})
}

// Realtime returns socket connection counts.
func (h *Handler) Realtime(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusOK, gin.H{"connections": 0, "users": 0})
		return
	}
	connections, users := h.realtime.Stats()
	c.JSON(http.StatusOK, gin.H{"connections": connections, "users": users})
}

func (h *Handler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
