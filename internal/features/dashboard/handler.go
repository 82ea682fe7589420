package dashboard

import (
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/cache"
	"github.com/mo-amir99/course-market-go/pkg/response"
)

const adminStatsKey = "dashboard:admin:stats"

// Handler serves admin and lecturer reporting endpoints.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	cache    cache.Client
	currency string
	statsTTL time.Duration
	now      func() time.Time
}

// NewHandler constructs a dashboard handler. A nil cache disables stats caching.
func NewHandler(db *gorm.DB, logger *slog.Logger, store cache.Client, currency string, statsTTL time.Duration) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		cache:    store,
		currency: currency,
		statsTTL: statsTTL,
		now:      time.Now,
	}
}

// AdminStats returns the platform overview. Results are cached for statsTTL.
// GET /dashboard/admin/stats
func (h *Handler) AdminStats(c *gin.Context) {
	ctx := c.Request.Context()

	var stats AdminStats
	if h.cache != nil && h.statsTTL > 0 {
		err := cache.GetJSON(ctx, h.cache, adminStatsKey, &stats)
		if err == nil {
			response.SuccessWithCache(c, http.StatusOK, stats, "", int(h.statsTTL.Seconds()))
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("failed to read cached dashboard stats", "error", err)
		}
	}

	stats, err := LoadAdminStats(h.db, h.currency, h.now().UTC())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve dashboard data", err)
		return
	}

	if h.cache != nil && h.statsTTL > 0 {
		if err := cache.SetJSON(ctx, h.cache, adminStatsKey, stats, h.statsTTL); err != nil {
			h.logger.Warn("failed to cache dashboard stats", "error", err)
		}
	}

	response.SuccessWithCache(c, http.StatusOK, stats, "", int(h.statsTTL.Seconds()))
}

// Revenue returns platform revenue totals and the per-course breakdown.
// GET /dashboard/admin/revenue
func (h *Handler) Revenue(c *gin.Context) {
	revenue, err := LoadRevenue(h.db, h.currency)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve revenue", err)
		return
	}
	response.Success(c, http.StatusOK, revenue, "", nil)
}

// LecturerEarnings returns any lecturer's earnings.
// GET /dashboard/admin/lecturers/:lecturerId/earnings
func (h *Handler) LecturerEarnings(c *gin.Context) {
	lecturerID, err := uuid.Parse(c.Param("lecturerId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lecturer id", err)
		return
	}
	h.writeEarnings(c, lecturerID)
}

// MyEarnings returns the caller's own earnings.
// GET /dashboard/lecturer/earnings
func (h *Handler) MyEarnings(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}
	h.writeEarnings(c, usr.ID)
}

func (h *Handler) writeEarnings(c *gin.Context, lecturerID uuid.UUID) {
	earnings, err := LecturerEarnings(h.db, lecturerID, h.currency)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve earnings", err)
		return
	}
	response.Success(c, http.StatusOK, earnings, "", nil)
}

// CourseDetails returns a course in any moderation state with its enrollment figures.
// GET /dashboard/admin/courses/:courseId
func (h *Handler) CourseDetails(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	details, err := LoadCourseDetails(h.db, courseID)
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			response.ErrorWithLog(h.logger, c, http.StatusNotFound, "Course not found.", err)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to load course", err)
		return
	}
	response.Success(c, http.StatusOK, details, "", nil)
}

// MyStudents lists the students enrolled in the caller's courses.
// GET /dashboard/lecturer/students?courseId=
func (h *Handler) MyStudents(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	var courseID *uuid.UUID
	if raw := c.Query("courseId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
			return
		}
		courseID = &id
	}

	students, err := LecturerStudents(h.db, usr.ID, courseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to load students", err)
		return
	}
	response.Success(c, http.StatusOK, students, "", nil)
}
