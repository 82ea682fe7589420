package lecture

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
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/bunny"
	"github.com/mo-amir99/course-market-go/pkg/cleanup"
	"github.com/mo-amir99/course-market-go/pkg/request"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

const uploadExpirySeconds = 6 * 60 * 60

// VideoUploader creates a hosted video and returns direct upload details.
type VideoUploader interface {
	GenerateVideoUploadInfo(ctx context.Context, title, collectionID string, expirationSeconds int) (*bunny.VideoUploadInfo, error)
}

// Handler processes lecture HTTP requests for lecturers.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier notification.Sender
	uploader VideoUploader
	media    cleanup.Media
}

// NewHandler constructs a lecture handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, notifier notification.Sender, uploader VideoUploader, media cleanup.Media) *Handler {
	return &Handler{db: db, logger: logger, notifier: notifier, uploader: uploader, media: media}
}

// List returns the lectures of one of the caller's topics.
func (h *Handler) List(c *gin.Context) {
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

	if _, _, err := EnsureTopic(h.db, topicID, usr.ID); err != nil {
		h.respondError(c, err, "failed to load topic")
		return
	}

	lectures, err := ListByTopic(h.db, topicID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list lectures", err)
		return
	}

	response.Success(c, http.StatusOK, lectures, "", nil)
}

// Create adds a pending lecture under one of the caller's topics.
func (h *Handler) Create(c *gin.Context) {
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

	parentTopic, parentCourse, err := EnsureTopic(h.db, topicID, usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to load topic")
		return
	}

	var req struct {
		Title           string `json:"title" binding:"required"`
		CoveredDuration int    `json:"coveredDuration"`
		LectureDuration int    `json:"lectureDuration"`
		Position        *int   `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lecture payload", err)
		return
	}

	created, err := Create(h.db, CreateInput{
		TopicID:         parentTopic.ID,
		CourseID:        parentCourse.ID,
		Title:           req.Title,
		CoveredDuration: req.CoveredDuration,
		LectureDuration: req.LectureDuration,
		Position:        req.Position,
	})
	if err != nil {
		h.respondError(c, err, "failed to create lecture")
		return
	}

	h.notifySubmitted(c.Request.Context(), parentCourse, created, "New lecture submitted")

	response.Created(c, created, "Lecture submitted for review.")
}

// Update edits a lecture and sends it back to review.
func (h *Handler) Update(c *gin.Context) {
	existing, parent, ok := h.ownedLecture(c)
	if !ok {
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lecture payload", err)
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
	for key, target := range map[string]**int{
		"coveredDuration": &input.CoveredDuration,
		"lectureDuration": &input.LectureDuration,
		"position":        &input.Position,
	} {
		value, ok := body[key]
		if !ok {
			continue
		}
		n, err := request.ReadInt(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, key+" must be a number", err)
			return
		}
		*target = &n
	}

	updated, err := Update(h.db, existing.ID, input)
	if err != nil {
		h.respondError(c, err, "failed to update lecture")
		return
	}

	h.notifySubmitted(c.Request.Context(), parent, updated, "Lecture resubmitted")

	response.Success(c, http.StatusOK, updated, "Lecture updated and sent for review.", nil)
}

// UploadURL creates a hosted video for the lecture and returns direct upload details.
func (h *Handler) UploadURL(c *gin.Context) {
	existing, parent, ok := h.ownedLecture(c)
	if !ok {
		return
	}

	if h.uploader == nil {
		h.respondError(c, ErrVideoUnavailable, "failed to prepare upload")
		return
	}

	collectionID := ""
	if parent.CollectionID != nil {
		collectionID = *parent.CollectionID
	}

	info, err := h.uploader.GenerateVideoUploadInfo(c.Request.Context(), existing.Title, collectionID, uploadExpirySeconds)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadGateway, "Failed to prepare video upload.", err)
		return
	}

	previous := existing.VideoID
	updated, err := AttachVideo(h.db, existing.ID, info.VideoID)
	if err != nil {
		h.respondError(c, err, "failed to attach video")
		return
	}

	if previous != nil && *previous != info.VideoID {
		go func(videoID string) {
			_ = cleanup.DeleteLectureVideo(context.Background(), h.media.Videos, h.logger, existing.ID, videoID)
		}(*previous)
	}

	h.notifySubmitted(c.Request.Context(), parent, updated, "Lecture video replaced")

	response.Success(c, http.StatusOK, gin.H{"lecture": updated, "upload": info}, "", nil)
}

// Delete removes a lecture and its video.
func (h *Handler) Delete(c *gin.Context) {
	existing, _, ok := h.ownedLecture(c)
	if !ok {
		return
	}

	if err := Delete(h.db, existing.ID); err != nil {
		h.respondError(c, err, "failed to delete lecture")
		return
	}

	if existing.HasVideo() {
		go func(videoID string) {
			_ = cleanup.DeleteLectureVideo(context.Background(), h.media.Videos, h.logger, existing.ID, videoID)
		}(*existing.VideoID)
	}

	response.Success(c, http.StatusOK, gin.H{"id": existing.ID}, "Lecture deleted.", nil)
}

func (h *Handler) ownedLecture(c *gin.Context) (Lecture, course.Course, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return Lecture{}, course.Course{}, false
	}

	lectureID, err := uuid.Parse(c.Param("lectureId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lecture id", err)
		return Lecture{}, course.Course{}, false
	}

	lecture, parent, err := GetOwned(h.db, lectureID, usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to load lecture")
		return Lecture{}, course.Course{}, false
	}
	return lecture, parent, true
}

func (h *Handler) notifySubmitted(ctx context.Context, parent course.Course, l Lecture, title string) {
	if h.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:     notification.KindLectureSubmitted,
		Title:    title,
		Body:     fmt.Sprintf("Lecture \"%s\" in \"%s\" is waiting for review.", l.Title, parent.Title),
		Priority: types.PriorityMedium,
		Refs:     notification.Refs{CourseID: &parent.ID, TopicID: &l.TopicID, LectureID: &l.ID},
		SenderID: &parent.LecturerID,
	}
	if err := h.notifier.NotifyRole(ctx, types.UserTypeAdmin, msg); err != nil {
		h.logger.Warn("failed to notify administrators", "lectureId", l.ID, "error", err)
	}
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrLectureNotFound):
		status = http.StatusNotFound
		message = "Lecture not found."
	case errors.Is(err, topic.ErrTopicNotFound):
		status = http.StatusNotFound
		message = "Topic not found."
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, course.ErrNotOwner):
		status = http.StatusForbidden
		message = "You do not own this course."
	case errors.Is(err, ErrVideoUnavailable):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrCoveredTooLong),
		errors.Is(err, ErrInvalidOrder):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
