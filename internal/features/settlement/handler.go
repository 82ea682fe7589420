package settlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/apperrors"
	"github.com/mo-amir99/course-market-go/pkg/cache"
	"github.com/mo-amir99/course-market-go/pkg/metrics"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/stripe"
)

const (
	maxWebhookBody  = 1 << 20
	webhookClaimTTL = 24 * time.Hour
)

// EventVerifier authenticates a raw webhook payload.
type EventVerifier interface {
	ConstructEvent(payload []byte, signatureHeader string) (*stripe.Event, error)
}

// Handler exposes the payment endpoints.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	engine   *Engine
	verifier EventVerifier
	claims   cache.Client
	now      func() time.Time
}

// NewHandler constructs a settlement handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, engine *Engine, verifier EventVerifier, claims cache.Client) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		engine:   engine,
		verifier: verifier,
		claims:   claims,
		now:      time.Now,
	}
}

// CreateIntent starts a purchase of a course for the caller.
func (h *Handler) CreateIntent(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	var req struct {
		CourseID string `json:"courseId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "courseId is required", err)
		return
	}

	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	intent, err := h.engine.CreateIntent(c.Request.Context(), usr.ID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to create payment intent")
		return
	}

	response.Created(c, intent, "Payment intent created.")
}

// Confirm finalizes the caller's payment after the client reports success.
func (h *Handler) Confirm(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	var req struct {
		PaymentIntentID string `json:"paymentIntentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "paymentIntentId is required", err)
		return
	}

	row, err := enrollment.GetByIntentRef(h.db, req.PaymentIntentID)
	if err != nil {
		h.respondError(c, err, "failed to load enrollment")
		return
	}
	if row.StudentID != usr.ID {
		h.respondError(c, enrollment.ErrEnrollmentNotFound, "failed to load enrollment")
		return
	}

	result, err := h.engine.Finalize(c.Request.Context(), req.PaymentIntentID, SourceConfirm)
	if err != nil {
		h.respondError(c, err, "failed to confirm payment")
		return
	}

	response.Success(c, http.StatusOK, result, "Payment confirmed. You are now enrolled.", nil)
}

// Webhook receives signed gateway events. Each event id is processed at most once.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	event, err := h.verifier.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		metrics.RecordWebhook("unknown", "invalid_signature")
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "Invalid webhook signature", err)
		return
	}

	ctx := c.Request.Context()
	claimKey := "webhook:event:" + event.ID
	if h.claims != nil {
		claimed, err := h.claims.SetNX(ctx, claimKey, "1", webhookClaimTTL)
		if err != nil {
			h.logger.Warn("webhook claim unavailable", "eventId", event.ID, "error", err)
		} else if !claimed {
			metrics.RecordWebhook(event.Type, "duplicate")
			response.Success(c, http.StatusOK, gin.H{"received": true, "duplicate": true}, "", nil)
			return
		}
	}

	record := &WebhookEvent{
		EventID:   event.ID,
		EventType: event.Type,
		Payload:   payload,
	}
	if intent, err := event.PaymentIntent(); err == nil {
		record.IntentRef = &intent.ID
	}

	stored, fresh, err := recordEvent(h.db, record)
	if err != nil {
		h.releaseClaim(ctx, claimKey)
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to record webhook event", err)
		return
	}
	if !fresh && stored.Success {
		metrics.RecordWebhook(event.Type, "duplicate")
		response.Success(c, http.StatusOK, gin.H{"received": true, "duplicate": true}, "", nil)
		return
	}

	processErr := h.process(ctx, event)
	if err := markEvent(h.db, stored.ID, processErr, h.now().UTC()); err != nil {
		h.logger.Error("failed to update webhook event", "eventId", event.ID, "error", err)
	}

	if processErr != nil {
		if isTerminal(processErr) {
			metrics.RecordWebhook(event.Type, "rejected")
			h.logger.Warn("webhook event not applied", "eventId", event.ID, "type", event.Type, "error", processErr)
			response.Success(c, http.StatusOK, gin.H{"received": true, "processed": false}, "", nil)
			return
		}

		// Anything else may succeed on redelivery, so the gateway is asked to retry.
		metrics.RecordWebhook(event.Type, "retry")
		h.releaseClaim(ctx, claimKey)
		status := http.StatusInternalServerError
		if errors.Is(processErr, ErrGatewayUnavailable) {
			status = http.StatusServiceUnavailable
		}
		response.ErrorWithLog(h.logger, c, status, "Webhook could not be processed, retry later.", processErr)
		return
	}

	metrics.RecordWebhook(event.Type, "processed")
	response.Success(c, http.StatusOK, gin.H{"received": true}, "", nil)
}

func (h *Handler) process(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventPaymentSucceeded:
		intent, err := event.PaymentIntent()
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedEvent, err)
		}
		_, err = h.engine.Finalize(ctx, intent.ID, SourceWebhook)
		if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
			h.logger.Warn("webhook for unknown payment intent", "eventId", event.ID, "intentRef", intent.ID)
			return nil
		}
		return err
	case stripe.EventPaymentFailed:
		intent, err := event.PaymentIntent()
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedEvent, err)
		}
		err = h.engine.ReportFailure(ctx, intent.ID, intent.FailureMessage())
		if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
			return nil
		}
		return err
	default:
		h.logger.Debug("ignoring webhook event", "eventId", event.ID, "type", event.Type)
		return nil
	}
}

// isTerminal reports whether redelivering the event can never change the outcome.
func isTerminal(err error) bool {
	return errors.Is(err, ErrPaymentNotComplete) || errors.Is(err, errMalformedEvent)
}

func (h *Handler) releaseClaim(ctx context.Context, key string) {
	if h.claims == nil {
		return
	}
	if err := h.claims.Delete(context.WithoutCancel(ctx), key); err != nil {
		h.logger.Warn("failed to release webhook claim", "key", key, "error", err)
	}
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found."
	case errors.Is(err, enrollment.ErrEnrollmentNotFound):
		status = http.StatusNotFound
		message = "Enrollment not found."
	case errors.Is(err, ErrCourseNotVisible):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, ErrOwnCourse):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, enrollment.ErrAlreadyEnrolled):
		status = http.StatusConflict
		message = "You already have an enrollment for this course."
	case errors.Is(err, ErrPaymentNotComplete):
		status = http.StatusBadRequest
		message = "Payment has not completed."
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			status = appErr.StatusCode()
			message = appErr.Message()
		}
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
