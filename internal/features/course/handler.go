package course

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/cleanup"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/request"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// CollectionCreator provisions a video collection for a new course.
type CollectionCreator interface {
	CreateCourseCollection(ctx context.Context, prefix, name string) (string, error)
}

// IntentCanceler releases a payment intent at the gateway.
type IntentCanceler interface {
	CancelPaymentIntent(ctx context.Context, intentID string) error
}

// Uploader stores an uploaded file and returns its public URL.
type Uploader interface {
	UploadStream(ctx context.Context, remotePath string, reader io.Reader, contentType string) (string, error)
}

// Handler processes course HTTP requests for lecturers.
type Handler struct {
	db          *gorm.DB
	logger      *slog.Logger
	notifier    notification.Sender
	collections CollectionCreator
	uploader    Uploader
	media       cleanup.Media
	canceler    IntentCanceler
}

// NewHandler constructs a course handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, notifier notification.Sender, collections CollectionCreator, uploader Uploader, media cleanup.Media, canceler IntentCanceler) *Handler {
	return &Handler{
		db:          db,
		logger:      logger,
		notifier:    notifier,
		collections: collections,
		uploader:    uploader,
		media:       media,
		canceler:    canceler,
	}
}

// ListMine returns the caller's courses with enrollment counts.
func (h *Handler) ListMine(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	params := pagination.Extract(c)
	filters := ListFilters{LecturerID: &usr.ID, Keyword: c.Query("filterKeyword")}

	if raw := c.Query("status"); raw != "" {
		state, err := moderation.Parse(raw)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid status filter", err)
			return
		}
		filters.Status = &state
	}

	courses, total, err := List(h.db, filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list courses", err)
		return
	}

	ids := make([]uuid.UUID, 0, len(courses))
	for _, item := range courses {
		ids = append(ids, item.ID)
	}

	counts, err := EnrollmentCounts(h.db, ids)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to count enrollments", err)
		return
	}

	items := make([]WithStats, 0, len(courses))
	for _, item := range courses {
		stats := counts[item.ID]
		stats.Course = item
		items = append(items, stats)
	}

	response.Success(c, http.StatusOK, items, "", pagination.MetadataFrom(total, params))
}

// Create inserts a new pending course and tells the administrators.
func (h *Handler) Create(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	var req struct {
		Title       string      `json:"title" binding:"required"`
		Description string      `json:"description" binding:"required"`
		Price       types.Money `json:"price"`
		Thumbnail   *string     `json:"thumbnail"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
		return
	}

	created, err := Create(h.db, CreateInput{
		LecturerID:  usr.ID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Thumbnail:   req.Thumbnail,
	})
	if err != nil {
		h.respondError(c, err, "failed to create course")
		return
	}

	if h.collections != nil {
		collectionID, err := h.collections.CreateCourseCollection(c.Request.Context(), usr.ID.String(), created.Title)
		if err != nil {
			h.logger.Warn("failed to create video collection", "courseId", created.ID, "error", err)
		} else if err := SetCollection(h.db, created.ID, collectionID); err != nil {
			h.logger.Warn("failed to store video collection", "courseId", created.ID, "error", err)
		} else {
			created.CollectionID = &collectionID
		}
	}

	h.notifyAdmins(c.Request.Context(), created, notification.KindCourseSubmitted, "New course submitted",
		fmt.Sprintf("%s submitted \"%s\" for review.", usr.FullName, created.Title))

	response.Created(c, created, "Course submitted for review.")
}

// GetMine returns one of the caller's courses.
func (h *Handler) GetMine(c *gin.Context) {
	course, ok := h.ownedCourse(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, course, "", nil)
}

// Update edits the caller's course. An approved course stays approved and its students are told.
func (h *Handler) Update(c *gin.Context) {
	existing, ok := h.ownedCourse(c)
	if !ok {
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
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

	if value, ok := body["description"]; ok {
		str, err := request.ReadString(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "description must be a string", err)
			return
		}
		input.Description = &str
	}

	if value, ok := body["price"]; ok {
		price, err := readMoney(value)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "price must be a number", err)
			return
		}
		input.Price = &price
	}

	updated, err := Update(h.db, existing.ID, input)
	if err != nil {
		h.respondError(c, err, "failed to update course")
		return
	}

	if updated.Status == moderation.StateApproved {
		h.notifyStudents(c.Request.Context(), updated, "Course updated",
			fmt.Sprintf("\"%s\" has been updated.", updated.Title))
	}

	response.Success(c, http.StatusOK, updated, "Course updated.", nil)
}

// UploadThumbnail stores a new thumbnail image and releases the previous one.
func (h *Handler) UploadThumbnail(c *gin.Context) {
	existing, ok := h.ownedCourse(c)
	if !ok {
		return
	}

	if h.uploader == nil {
		response.ErrorWithLog(h.logger, c, http.StatusServiceUnavailable, "File storage is not configured.", nil)
		return
	}

	file, fileHeader, err := c.Request.FormFile("image")
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "Image file is required.", err)
		return
	}
	defer file.Close()

	remotePath := fmt.Sprintf("courses/%s/thumbnails/%s%s", existing.ID, uuid.NewString(), path.Ext(fileHeader.Filename))

	url, err := h.uploader.UploadStream(c.Request.Context(), remotePath, file, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadGateway, "Failed to upload image to storage.", err)
		return
	}

	if err := SetThumbnail(h.db, existing.ID, &url); err != nil {
		h.respondError(c, err, "failed to update course thumbnail")
		return
	}

	go func(old *string) {
		_ = cleanup.DeleteStoredFile(context.Background(), h.media.Files, h.logger, existing.ID, old)
	}(existing.Thumbnail)

	existing.Thumbnail = &url
	response.Success(c, http.StatusOK, existing, "", nil)
}

// Delete removes a course and everything under it. Admins may delete any course.
// A course with paid enrollments is kept; unsettled purchases are cancelled and dropped.
func (h *Handler) Delete(c *gin.Context) {
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

	existing, err := Get(h.db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	if usr.UserType != types.UserTypeAdmin && existing.LecturerID != usr.ID {
		h.respondError(c, ErrNotOwner, "failed to delete course")
		return
	}

	paid, err := HasSettledEnrollments(h.db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to check enrollments")
		return
	}
	if paid {
		h.respondError(c, ErrCourseHasStudents, "failed to delete course")
		return
	}

	// Open intents are cancelled before their pending rows go away with the course.
	refs, err := PendingIntentRefs(h.db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load pending enrollments")
		return
	}
	if h.canceler != nil {
		for _, ref := range refs {
			if err := h.canceler.CancelPaymentIntent(c.Request.Context(), ref); err != nil {
				response.ErrorWithLog(h.logger, c, http.StatusBadGateway, "Payment gateway is unavailable.", err)
				return
			}
		}
	}

	if err := cleanup.CleanupCourse(c.Request.Context(), h.db, h.media, h.logger, courseID); err != nil {
		h.respondError(c, err, "failed to delete course")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": courseID}, "Course deleted.", nil)
}

func (h *Handler) ownedCourse(c *gin.Context) (Course, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return Course{}, false
	}

	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return Course{}, false
	}

	course, err := GetOwned(h.db, courseID, usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return Course{}, false
	}
	return course, true
}

func (h *Handler) notifyAdmins(ctx context.Context, course Course, kind notification.Kind, title, body string) {
	if h.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:     kind,
		Title:    title,
		Body:     body,
		Priority: types.PriorityMedium,
		Refs:     notification.Refs{CourseID: &course.ID},
		SenderID: &course.LecturerID,
	}
	if err := h.notifier.NotifyRole(ctx, types.UserTypeAdmin, msg); err != nil {
		h.logger.Warn("failed to notify administrators", "courseId", course.ID, "kind", kind, "error", err)
	}
}

func (h *Handler) notifyStudents(ctx context.Context, course Course, title, body string) {
	if h.notifier == nil {
		return
	}
	students, err := EnrolledStudentIDs(h.db, course.ID)
	if err != nil {
		h.logger.Warn("failed to load enrolled students", "courseId", course.ID, "error", err)
		return
	}
	msg := notification.Message{
		Kind:     notification.KindCourseUpdated,
		Title:    title,
		Body:     body,
		Priority: types.PriorityLow,
		Refs:     notification.Refs{CourseID: &course.ID},
		SenderID: &course.LecturerID,
	}
	if err := h.notifier.NotifyMany(ctx, students, msg); err != nil {
		h.logger.Warn("failed to notify enrolled students", "courseId", course.ID, "error", err)
	}
}

func readMoney(value interface{}) (types.Money, error) {
	switch v := value.(type) {
	case string:
		return types.NewMoneyFromString(strings.TrimSpace(v))
	default:
		f, err := request.ReadFloat(value)
		if err != nil {
			return types.Money{}, err
		}
		return types.NewMoney(f), nil
	}
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrCourseNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
		message = "You do not own this course."
	case errors.Is(err, ErrCourseHasStudents):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrDescriptionRequired),
		errors.Is(err, ErrInvalidPrice):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
