package topic

import (
	"context"
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
	"github.com/mo-amir99/course-market-go/pkg/cleanup"
	"github.com/mo-amir99/course-market-go/pkg/request"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Handler processes topic HTTP requests for lecturers.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier notification.Sender
	media    cleanup.Media
}

// NewHandler constructs a topic handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, notifier notification.Sender, media cleanup.Media) *Handler {
	return &Handler{db: db, logger: logger, notifier: notifier, media: media}
}

// List returns every topic of one of the caller's courses.
func (h *Handler) List(c *gin.Context) {
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

	if _, err := course.GetOwned(h.db, courseID, usr.ID); err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	topics, err := ListByCourse(h.db, courseID, nil)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list topics", err)
		return
	}

	response.Success(c, http.StatusOK, topics, "", nil)
}

// Create adds a pending topic to one of the caller's courses.
func (h *Handler) Create(c *gin.Context) {
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

	parent, err := course.GetOwned(h.db, courseID, usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	var req struct {
		Title    string `json:"title" binding:"required"`
		Position *int   `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid topic payload", err)
		return
	}

	created, err := Create(h.db, CreateInput{CourseID: parent.ID, Title: req.Title, Position: req.Position})
	if err != nil {
		h.respondError(c, err, "failed to create topic")
		return
	}

	h.notifySubmitted(c.Request.Context(), parent, created, "New topic submitted")

	response.Created(c, created, "Topic submitted for review.")
}

// Update edits a topic and sends it back to review.
func (h *Handler) Update(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	topicID, err := uuid.Parse(c.Param("topicId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid topic id", err)
		return
	}

	_, parent, err := GetOwned(h.db, topicID, usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to load topic")
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid topic payload", err)
		return
	}

	input := UpdateInput{}
	if value, ok := body["title"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "title must be a string", err)
			return
		}
		input.Title = &str
	}
	if value, ok := body["position"]; ok {
		position, err := request.ReadInt(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "position must be a number", err)
			return
		}
		input.Position = &position
	}

	updated, err := Update(h.db, topicID, input)
	if err != nil {
		h.respondError(c, err, "failed to update topic")
		return
	}

	h.notifySubmitted(c.Request.Context(), parent, updated, "Topic resubmitted")

	response.Success(c, http.StatusOK, updated, "Topic updated and sent for review.", nil)
}

// Delete removes a topic with its lectures and their videos.
func (h *Handler) Delete(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	topicID, err := uuid.Parse(c.Param("topicId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid topic id", err)
		return
	}

	if _, _, err := GetOwned(h.db, topicID, usr.ID); err != nil {
		h.respondError(c, err, "failed to load topic")
		return
	}

	if err := cleanup.CleanupTopic(c.Request.Context(), h.db, h.media, h.logger, topicID); err != nil {
		h.respondError(c, err, "failed to delete topic")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": topicID}, "Topic deleted.", nil)
}

func (h *Handler) notifySubmitted(ctx context.Context, parent course.Course, t Topic, title string) {
	if h.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:     notification.KindTopicSubmitted,
		Title:    title,
		Body:     fmt.Sprintf("Topic \"%s\" in \"%s\" is waiting for review.", t.Title, parent.Title),
		Priority: types.PriorityMedium,
		Refs:     notification.Refs{CourseID: &parent.ID, TopicID: &t.ID},
		SenderID: &parent.LecturerID,
	}
	if err := h.notifier.NotifyRole(ctx, types.UserTypeAdmin, msg); err != nil {
		h.logger.Warn("failed to notify administrators", "topicId", t.ID, "error", err)
	}
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrTopicNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
		message = "Topic not found."
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, course.ErrNotOwner):
		status = http.StatusForbidden
		message = "You do not own this course."
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrInvalidOrder):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
