package catalog

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// VideoSigner produces a short-lived playback URL for a stored video.
type VideoSigner interface {
	SignedVideoURL(videoID string) (string, error)
}

// Handler serves the public course catalog and lecture playback.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	signer VideoSigner
}

// NewHandler constructs a catalog handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, signer VideoSigner) *Handler {
	return &Handler{db: db, logger: logger, signer: signer}
}

const (
	catalogPageSize = 12
	catalogMaxAge   = 60
)

// List returns approved courses.
func (h *Handler) List(c *gin.Context) {
	params := pagination.ExtractWithDefault(c, catalogPageSize)
	filters := ListFilters{Keyword: c.Query("filterKeyword")}

	if raw := c.Query("lecturerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lecturer id", err)
			return
		}
		filters.LecturerID = &id
	}

	items, total, err := ListCourses(h.db, filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list courses", err)
		return
	}

	response.SuccessWithPublicCache(c, http.StatusOK, items, "", pagination.MetadataFrom(total, params), catalogMaxAge)
}

// Get returns an approved course and its visible topics and lectures.
func (h *Handler) Get(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	detail, err := CourseDetail(h.db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	if usr, ok := middleware.GetUserFromContext(c); ok {
		e, err := enrollment.FindForStudentCourse(h.db, usr.ID, courseID)
		switch {
		case err == nil:
			status := e.PaymentStatus
			detail.PaymentStatus = &status
			detail.IsEnrolled = e.Settled()
		case !errors.Is(err, enrollment.ErrEnrollmentNotFound):
			h.logger.Warn("failed to load enrollment for course detail", "courseId", courseID, "error", err)
		}
	}

	response.Success(c, http.StatusOK, detail, "", nil)
}

// LectureContent returns a signed playback URL for a lecture the caller may watch.
func (h *Handler) LectureContent(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}
	lectureID, err := uuid.Parse(c.Param("lectureId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lecture id", err)
		return
	}

	l, err := WatchableLecture(h.db, Viewer{ID: usr.ID, UserType: usr.UserType}, courseID, lectureID)
	if err != nil {
		h.respondError(c, err, "failed to load lecture")
		return
	}

	if h.signer == nil {
		response.ErrorWithLog(h.logger, c, http.StatusServiceUnavailable, "Video delivery is not configured.", nil)
		return
	}

	videoURL, err := h.signer.SignedVideoURL(*l.VideoID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadGateway, "Failed to prepare video playback.", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"lecture":  l,
		"videoUrl": videoURL,
	}, "", nil)
}

// OwnerTree returns the full moderation tree of a course to its lecturer or an admin.
func (h *Handler) OwnerTree(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	tree, err := Tree(h.db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course tree")
		return
	}
	if usr.UserType != types.UserTypeAdmin && tree.Course.LecturerID != usr.ID {
		h.respondError(c, course.ErrNotOwner, "failed to load course tree")
		return
	}

	response.Success(c, http.StatusOK, tree, "", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrCourseNotFound), errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, ErrLectureNotFound):
		status = http.StatusNotFound
		message = "Lecture not found."
	case errors.Is(err, ErrNoVideo):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, ErrNotEnrolled):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, course.ErrNotOwner):
		status = http.StatusForbidden
		message = "You do not own this course."
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
