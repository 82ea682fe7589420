package approval

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
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Handler lets administrators review submitted courses, topics and lectures.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier notification.Sender
}

// NewHandler constructs an approval handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, notifier notification.Sender) *Handler {
	return &Handler{db: db, logger: logger, notifier: notifier}
}

type decisionRequest struct {
	Status string  `json:"status" binding:"required"`
	Reason *string `json:"reason"`
}

// Queue returns everything awaiting review, or the nodes in ?status= when given.
func (h *Handler) Queue(c *gin.Context) {
	state := moderation.StatePending
	if raw := c.Query("status"); raw != "" {
		parsed, err := moderation.Parse(raw)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "status must be pending, approved or rejected", err)
			return
		}
		state = parsed
	}

	queue, err := LoadQueue(h.db, state)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to load review queue", err)
		return
	}

	response.Success(c, http.StatusOK, queue, "", nil)
}

// DecideCourse approves or rejects a course.
func (h *Handler) DecideCourse(c *gin.Context) {
	h.decide(c, moderation.KindCourse, "courseId")
}

// DecideTopic approves or rejects a topic.
func (h *Handler) DecideTopic(c *gin.Context) {
	h.decide(c, moderation.KindTopic, "topicId")
}

// DecideLecture approves or rejects a lecture.
func (h *Handler) DecideLecture(c *gin.Context) {
	h.decide(c, moderation.KindLecture, "lectureId")
}

func (h *Handler) decide(c *gin.Context, kind moderation.Kind, param string) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, fmt.Sprintf("invalid %s id", kind), err)
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "status is required", err)
		return
	}

	to, err := moderation.Parse(req.Status)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "status must be pending, approved or rejected", err)
		return
	}

	outcome, err := Decide(h.db, kind, id, to, req.Reason)
	if err != nil {
		h.respondError(c, err, "failed to update status")
		return
	}

	var adminID *uuid.UUID
	if usr, ok := middleware.GetUserFromContext(c); ok {
		adminID = &usr.ID
	}
	h.logger.Info("moderation decision",
		"kind", kind,
		"id", id,
		"from", outcome.Previous,
		"to", outcome.Current(),
		"adminId", adminID,
	)

	h.announce(c.Request.Context(), outcome, adminID)

	var payload interface{}
	switch {
	case outcome.Lecture != nil:
		payload = outcome.Lecture
	case outcome.Topic != nil:
		payload = outcome.Topic
	default:
		payload = outcome.Course
	}
	response.Success(c, http.StatusOK, payload, fmt.Sprintf("%s %s successfully", kind, outcome.Current()), nil)
}

// announce tells the lecturer about the decision. When an approval makes a topic or
// lecture visible, enrolled students also hear that new content is available.
func (h *Handler) announce(ctx context.Context, outcome Outcome, adminID *uuid.UUID) {
	if h.notifier == nil {
		return
	}
	current := outcome.Current()
	if current == moderation.StatePending {
		return
	}

	refs := notification.Refs{CourseID: &outcome.Course.ID}
	if outcome.Topic != nil {
		refs.TopicID = &outcome.Topic.ID
	}
	if outcome.Lecture != nil {
		refs.TopicID = &outcome.Lecture.TopicID
		refs.LectureID = &outcome.Lecture.ID
	}

	msg := notification.Message{
		Kind:     kindFor(outcome.Kind, current),
		Priority: types.PriorityMedium,
		Refs:     refs,
		SenderID: adminID,
	}
	if current == moderation.StateApproved {
		msg.Title = fmt.Sprintf("Your %s was approved", outcome.Kind)
		msg.Body = fmt.Sprintf("%q is now live for students.", outcome.Title())
	} else {
		msg.Title = fmt.Sprintf("Your %s was rejected", outcome.Kind)
		msg.Body = fmt.Sprintf("%q was rejected: %s", outcome.Title(), rejectionReason(outcome))
		msg.Priority = types.PriorityHigh
	}

	if err := h.notifier.Notify(ctx, outcome.Course.LecturerID, msg); err != nil {
		h.logger.Warn("failed to notify lecturer", "kind", outcome.Kind, "courseId", outcome.Course.ID, "error", err)
	}

	if outcome.Kind == moderation.KindCourse || !outcome.Visible() {
		return
	}

	students, err := course.EnrolledStudentIDs(h.db, outcome.Course.ID)
	if err != nil {
		h.logger.Warn("failed to load enrolled students", "courseId", outcome.Course.ID, "error", err)
		return
	}
	if len(students) == 0 {
		return
	}
	update := notification.Message{
		Kind:     notification.KindCourseUpdated,
		Title:    "New content available",
		Body:     fmt.Sprintf("%q was added to %q.", outcome.Title(), outcome.Course.Title),
		Priority: types.PriorityLow,
		Refs:     refs,
		SenderID: &outcome.Course.LecturerID,
	}
	if err := h.notifier.NotifyMany(ctx, students, update); err != nil {
		h.logger.Warn("failed to notify enrolled students", "courseId", outcome.Course.ID, "error", err)
	}
}

func kindFor(kind moderation.Kind, state moderation.State) notification.Kind {
	approved := state == moderation.StateApproved
	switch kind {
	case moderation.KindTopic:
		if approved {
			return notification.KindTopicApproved
		}
		return notification.KindTopicRejected
	case moderation.KindLecture:
		if approved {
			return notification.KindLectureApproved
		}
		return notification.KindLectureRejected
	default:
		if approved {
			return notification.KindCourseApproved
		}
		return notification.KindCourseRejected
	}
}

func rejectionReason(outcome Outcome) string {
	var reason *string
	switch {
	case outcome.Lecture != nil:
		reason = outcome.Lecture.RejectionReason
	case outcome.Topic != nil:
		reason = outcome.Topic.RejectionReason
	default:
		reason = outcome.Course.RejectionReason
	}
	if reason == nil {
		return defaultRejectionReason
	}
	return *reason
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, topic.ErrTopicNotFound):
		status = http.StatusNotFound
		message = "Topic not found."
	case errors.Is(err, lecture.ErrLectureNotFound):
		status = http.StatusNotFound
		message = "Lecture not found."
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
		message = "Content not found."
	case errors.Is(err, moderation.ErrInvalidState), errors.Is(err, ErrUnknownNode):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
