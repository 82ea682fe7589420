package enrollment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// IntentCanceler releases a payment intent at the gateway.
type IntentCanceler interface {
	CancelPaymentIntent(ctx context.Context, intentID string) error
}

// Handler processes enrollment and progress HTTP requests.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	canceler IntentCanceler
	now      func() time.Time
}

// NewHandler constructs an enrollment handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, canceler IntentCanceler) *Handler {
	return &Handler{db: db, logger: logger, canceler: canceler, now: time.Now}
}

// ListMine returns the caller's enrollments.
func (h *Handler) ListMine(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	status, ok := h.statusFilter(c)
	if !ok {
		return
	}

	items, err := ListForStudent(h.db, usr.ID, status)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list enrollments", err)
		return
	}

	response.Success(c, http.StatusOK, items, "", nil)
}

// GetForCourse reports whether the caller is enrolled in a course and in which state.
func (h *Handler) GetForCourse(c *gin.Context) {
	usr, courseID, ok := h.studentCourse(c)
	if !ok {
		return
	}

	e, err := FindForStudentCourse(h.db, usr.ID, courseID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			response.Success(c, http.StatusOK, gin.H{"enrolled": false, "paymentStatus": nil}, "", nil)
			return
		}
		h.respondError(c, err, "failed to load enrollment")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"enrolled":      e.Settled(),
		"paymentStatus": e.PaymentStatus,
		"enrollment":    e,
	}, "", nil)
}

// SaveProgress replaces the caller's progress in a course.
func (h *Handler) SaveProgress(c *gin.Context) {
	usr, courseID, ok := h.studentCourse(c)
	if !ok {
		return
	}

	var req struct {
		CompletedLectures []uuid.UUID            `json:"completedLectures"`
		VideoProgress     map[uuid.UUID]Position `json:"videoProgress"`
		CurrentTopic      *uuid.UUID             `json:"currentTopic"`
		CurrentLecture    *uuid.UUID             `json:"currentLecture"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid progress payload", err)
		return
	}

	progress, err := SaveProgress(h.db, usr.ID, courseID, ProgressInput{
		CompletedLectures: req.CompletedLectures,
		Positions:         req.VideoProgress,
		CurrentTopicID:    req.CurrentTopic,
		CurrentLectureID:  req.CurrentLecture,
	}, h.now().UTC())
	if err != nil {
		h.respondError(c, err, "failed to save progress")
		return
	}

	response.Success(c, http.StatusOK, progress, "Progress saved.", nil)
}

// GetProgress returns the caller's progress in a course.
func (h *Handler) GetProgress(c *gin.Context) {
	usr, courseID, ok := h.studentCourse(c)
	if !ok {
		return
	}

	progress, err := GetProgress(h.db, usr.ID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load progress")
		return
	}

	response.Success(c, http.StatusOK, progress, "", nil)
}

// List returns enrollments for administrators.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)
	filters := ListFilters{}

	if raw := c.Query("studentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid student id", err)
			return
		}
		filters.StudentID = &id
	}

	if raw := c.Query("courseId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
			return
		}
		filters.CourseID = &id
	}

	status, ok := h.statusFilter(c)
	if !ok {
		return
	}
	filters.PaymentStatus = status

	if raw := c.Query("pendingOlderThanHours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 0 {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid pendingOlderThanHours", err)
			return
		}
		cutoff := h.now().Add(-time.Duration(hours) * time.Hour)
		filters.PendingBefore = &cutoff
	}

	items, total, err := List(h.db, filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list enrollments", err)
		return
	}

	response.Success(c, http.StatusOK, items, "", pagination.MetadataFrom(total, params))
}

// Supersede cancels a stuck pending enrollment so the student can purchase again.
// The gateway intent is cancelled first; a settled row is never touched.
func (h *Handler) Supersede(c *gin.Context) {
	id, err := uuid.Parse(c.Param("enrollmentId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid enrollment id", err)
		return
	}

	existing, err := Get(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to load enrollment")
		return
	}
	if existing.PaymentStatus != types.PaymentStatusPending {
		h.respondError(c, ErrNotPending, "failed to supersede enrollment")
		return
	}

	if h.canceler != nil {
		if err := h.canceler.CancelPaymentIntent(c.Request.Context(), existing.IntentRef); err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadGateway, "Payment gateway is unavailable.", err)
			return
		}
	}

	removed, err := Supersede(h.db, id)
	if err != nil {
		h.respondError(c, err, "failed to supersede enrollment")
		return
	}

	h.logger.Info("pending enrollment superseded",
		"enrollmentId", removed.ID,
		"studentId", removed.StudentID,
		"courseId", removed.CourseID,
		"intentRef", removed.IntentRef,
	)

	response.Success(c, http.StatusOK, gin.H{"id": removed.ID}, "Pending enrollment removed.", nil)
}

func (h *Handler) statusFilter(c *gin.Context) (*types.PaymentStatus, bool) {
	raw := c.Query("paymentStatus")
	if raw == "" {
		return nil, true
	}
	status := types.PaymentStatus(raw)
	if status != types.PaymentStatusPending && status != types.PaymentStatusSettled {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid paymentStatus filter", nil)
		return nil, false
	}
	return &status, true
}

func (h *Handler) studentCourse(c *gin.Context) (*middleware.User, uuid.UUID, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return nil, uuid.Nil, false
	}

	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return nil, uuid.Nil, false
	}
	return usr, courseID, true
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrEnrollmentNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
		message = "Enrollment not found."
	case errors.Is(err, ErrNotSettled):
		status = http.StatusForbidden
		message = "Payment for this course has not been completed."
	case errors.Is(err, ErrAlreadyEnrolled), errors.Is(err, ErrNotPending):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, ErrInvalidProgress):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
