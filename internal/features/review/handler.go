package review

import (
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/request"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Handler processes review HTTP requests.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier notification.Sender
}

// NewHandler constructs a review handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, notifier notification.Sender) *Handler {
	return &Handler{db: db, logger: logger, notifier: notifier}
}

// ListByCourse returns a course's reviews with rating statistics.
func (h *Handler) ListByCourse(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	reviews, err := ListByCourse(h.db, courseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list reviews", err)
		return
	}

	stats, err := StatsFor(h.db, []uuid.UUID{courseID})
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to compute review stats", err)
		return
	}

	var mine *WithAuthor
	if usr, ok := middleware.GetUserFromContext(c); ok {
		for i := range reviews {
			if reviews[i].UserID == usr.ID {
				mine = &reviews[i]
				break
			}
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"reviews":    reviews,
		"userReview": mine,
		"stats":      stats[courseID],
	}, "", nil)
}

// Create adds the caller's review and tells the lecturer.
func (h *Handler) Create(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	var req struct {
		CourseID string `json:"courseId" binding:"required"`
		Rating   int    `json:"rating"`
		Comment  string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid review payload", err)
		return
	}

	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	target, err := course.Get(h.db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	created, err := Create(h.db, usr.ID, courseID, req.Rating, req.Comment)
	if err != nil {
		h.respondError(c, err, "failed to create review")
		return
	}

	if h.notifier != nil {
		msg := notification.Message{
			Kind:     notification.KindNewReview,
			Title:    "New review",
			Body:     fmt.Sprintf("%s rated \"%s\" %d/5.", usr.FullName, target.Title, created.Rating),
			Priority: types.PriorityLow,
			Refs:     notification.Refs{CourseID: &target.ID, ReviewID: &created.ID},
			SenderID: &usr.ID,
		}
		if err := h.notifier.Notify(c.Request.Context(), target.LecturerID, msg); err != nil {
			h.logger.Warn("failed to notify lecturer of review", "reviewId", created.ID, "error", err)
		}
	}

	response.Created(c, created, "Review submitted successfully.")
}

// Update edits the caller's review.
func (h *Handler) Update(c *gin.Context) {
	usr, id, ok := h.callerAndReview(c)
	if !ok {
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid review payload", err)
		return
	}

	var (
		rating  *int
		comment *string
	)
	if value, ok := body["rating"]; ok {
		parsed, err := request.ReadInt(value)
		if err != nil {
			h.respondError(c, ErrInvalidRating, "invalid rating")
			return
		}
		rating = &parsed
	}
	if value, ok := body["comment"]; ok {
		parsed, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "comment must be a string", err)
			return
		}
		comment = &parsed
	}

	updated, err := Update(h.db, id, usr.ID, rating, comment)
	if err != nil {
		h.respondError(c, err, "failed to update review")
		return
	}

	response.Success(c, http.StatusOK, updated, "Review updated successfully.", nil)
}

// Delete removes the caller's review.
func (h *Handler) Delete(c *gin.Context) {
	usr, id, ok := h.callerAndReview(c)
	if !ok {
		return
	}

	if err := Delete(h.db, id, usr.ID); err != nil {
		h.respondError(c, err, "failed to delete review")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id}, "Review deleted successfully.", nil)
}

// MarkHelpful bumps a review's helpful counter.
func (h *Handler) MarkHelpful(c *gin.Context) {
	id, err := uuid.Parse(c.Param("reviewId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid review id", err)
		return
	}

	count, err := MarkHelpful(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to mark review helpful")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"helpfulCount": count}, "", nil)
}

func (h *Handler) callerAndReview(c *gin.Context) (*middleware.User, uuid.UUID, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return nil, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("reviewId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid review id", err)
		return nil, uuid.Nil, false
	}
	return usr, id, true
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrReviewNotFound):
		status = http.StatusNotFound
		message = "Review not found or you don't have permission to change it."
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, ErrNotEnrolled):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, ErrAlreadyReviewed):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, ErrInvalidRating), errors.Is(err, ErrCommentTooLong):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
