package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/commission"
	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/pkg/apperrors"
	"github.com/mo-amir99/course-market-go/pkg/metrics"
	"github.com/mo-amir99/course-market-go/pkg/stripe"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Source names the path that finalized a payment.
type Source string

const (
	SourceConfirm Source = "confirm"
	SourceWebhook Source = "webhook"
)

// Gateway is the card processor the engine settles against.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
}

// Intent is returned to the client so it can complete the payment.
type Intent struct {
	EnrollmentID uuid.UUID            `json:"enrollmentId"`
	IntentRef    string               `json:"paymentIntentId"`
	ClientSecret string               `json:"clientSecret"`
	Amount       types.Money          `json:"amount"`
	AmountMinor  int64                `json:"amountMinor"`
	Currency     string               `json:"currency"`
	Breakdown    commission.Breakdown `json:"breakdown"`
}

// Result describes a settled enrollment. Every finalize call for the same intent
// returns the same Result, whichever caller performed the settlement.
type Result struct {
	EnrollmentID  uuid.UUID           `json:"enrollmentId"`
	StudentID     uuid.UUID           `json:"studentId"`
	CourseID      uuid.UUID           `json:"courseId"`
	PaymentStatus types.PaymentStatus `json:"paymentStatus"`
	AmountMinor   int64               `json:"amountMinor"`
	Currency      string              `json:"currency"`
	AdminShare    int64               `json:"adminShare"`
	LecturerShare int64               `json:"lecturerShare"`
	SettledAt     time.Time           `json:"settledAt"`
}

// Engine turns payment intents into settled enrollments.
type Engine struct {
	db       *gorm.DB
	gateway  Gateway
	notifier notification.Sender
	logger   *slog.Logger
	currency string
	now      func() time.Time
}

// NewEngine constructs a settlement engine.
func NewEngine(db *gorm.DB, gateway Gateway, notifier notification.Sender, logger *slog.Logger, currency string) *Engine {
	return &Engine{
		db:       db,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		currency: currency,
		now:      time.Now,
	}
}

// CreateIntent opens a gateway payment for a course and records a pending enrollment.
// Nothing is stored when the gateway call fails.
func (e *Engine) CreateIntent(ctx context.Context, studentID, courseID uuid.UUID) (*Intent, error) {
	c, err := course.Get(e.db, courseID)
	if err != nil {
		metrics.RecordIntent("rejected")
		return nil, err
	}
	if !moderation.IsVisible(c.Status) {
		metrics.RecordIntent("rejected")
		return nil, ErrCourseNotVisible
	}
	if c.LecturerID == studentID {
		metrics.RecordIntent("rejected")
		return nil, ErrOwnCourse
	}

	if _, err := enrollment.FindForStudentCourse(e.db, studentID, courseID); err == nil {
		metrics.RecordIntent("conflict")
		return nil, enrollment.ErrAlreadyEnrolled
	} else if !errors.Is(err, enrollment.ErrEnrollmentNotFound) {
		return nil, err
	}

	amountMinor := c.Price.Minor()
	intent, err := e.gateway.CreatePaymentIntent(ctx, amountMinor, e.currency, map[string]string{
		"courseId":  courseID.String(),
		"studentId": studentID.String(),
	})
	if err != nil {
		metrics.RecordIntent("gateway_error")
		return nil, gatewayError(err)
	}

	row := &enrollment.Enrollment{
		StudentID:     studentID,
		CourseID:      courseID,
		IntentRef:     intent.ID,
		PriceSnapshot: c.Price,
		AmountMinor:   amountMinor,
		Currency:      e.currency,
	}
	if err := enrollment.CreatePending(e.db, row); err != nil {
		if cancelErr := e.gateway.CancelPaymentIntent(context.WithoutCancel(ctx), intent.ID); cancelErr != nil {
			e.logger.Warn("failed to cancel orphaned payment intent", "intentRef", intent.ID, "error", cancelErr)
		}
		if errors.Is(err, enrollment.ErrAlreadyEnrolled) {
			metrics.RecordIntent("conflict")
		}
		return nil, err
	}

	metrics.RecordIntent("created")
	e.logger.Info("payment intent created",
		"enrollmentId", row.ID,
		"courseId", courseID,
		"studentId", studentID,
		"intentRef", intent.ID,
		"amountMinor", amountMinor,
	)

	return &Intent{
		EnrollmentID: row.ID,
		IntentRef:    intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       c.Price,
		AmountMinor:  amountMinor,
		Currency:     e.currency,
		Breakdown:    commission.Preview(amountMinor),
	}, nil
}

// Finalize settles the enrollment behind an intent once the gateway reports success.
// Concurrent callers race on a conditional update; only the winner sends notifications.
func (e *Engine) Finalize(ctx context.Context, intentRef string, source Source) (*Result, error) {
	if source != SourceConfirm && source != SourceWebhook {
		return nil, ErrInvalidSource
	}

	row, err := enrollment.GetByIntentRef(e.db, intentRef)
	if err != nil {
		metrics.RecordFinalize(string(source), "not_found")
		return nil, err
	}
	if row.Settled() {
		metrics.RecordFinalize(string(source), "already_settled")
		return resultOf(row), nil
	}

	intent, err := e.gateway.GetPaymentIntent(ctx, intentRef)
	if err != nil {
		metrics.RecordFinalize(string(source), "gateway_error")
		return nil, gatewayError(err)
	}
	if intent.Status() != stripe.StatusSucceeded {
		metrics.RecordFinalize(string(source), "not_complete")
		return nil, ErrPaymentNotComplete
	}

	adminShare, lecturerShare := commission.Split(row.AmountMinor)
	won, err := enrollment.MarkSettled(e.db, row.ID, enrollment.Settlement{
		AdminShare:    adminShare,
		LecturerShare: lecturerShare,
		SettledAt:     e.now().UTC(),
		Source:        string(source),
	})
	if err != nil {
		metrics.RecordFinalize(string(source), "error")
		return nil, err
	}

	settled, err := enrollment.Get(e.db, row.ID)
	if err != nil {
		return nil, err
	}
	if !settled.Settled() {
		// The row left pending without being settled, e.g. superseded mid-flight.
		metrics.RecordFinalize(string(source), "not_found")
		return nil, enrollment.ErrEnrollmentNotFound
	}

	if !won {
		metrics.RecordFinalize(string(source), "already_settled")
		return resultOf(settled), nil
	}

	metrics.RecordFinalize(string(source), "settled")
	e.logger.Info("enrollment settled",
		"enrollmentId", settled.ID,
		"intentRef", intentRef,
		"source", source,
		"adminShare", adminShare,
		"lecturerShare", lecturerShare,
	)

	e.announce(context.WithoutCancel(ctx), settled)
	return resultOf(settled), nil
}

// ReportFailure tells the student that a payment attempt failed. The enrollment stays pending.
func (e *Engine) ReportFailure(ctx context.Context, intentRef, reason string) error {
	row, err := enrollment.GetByIntentRef(e.db, intentRef)
	if err != nil {
		return err
	}
	if row.Settled() || e.notifier == nil {
		return nil
	}

	body := "Your payment could not be completed. Please try again."
	if reason != "" {
		body = fmt.Sprintf("Your payment could not be completed: %s", reason)
	}

	enrollmentID := row.ID
	courseID := row.CourseID
	if err := e.notifier.Notify(ctx, row.StudentID, notification.Message{
		Kind:     notification.KindPaymentFailed,
		Title:    "Payment failed",
		Body:     body,
		Priority: types.PriorityHigh,
		Refs:     notification.Refs{CourseID: &courseID, EnrollmentID: &enrollmentID},
	}); err != nil {
		e.logger.Warn("failed to notify payment failure", "intentRef", intentRef, "error", err)
	}
	return nil
}

func (e *Engine) announce(ctx context.Context, row enrollment.Enrollment) {
	if e.notifier == nil {
		return
	}

	c, err := course.Get(e.db, row.CourseID)
	if err != nil {
		e.logger.Warn("failed to load course for settlement notifications", "courseId", row.CourseID, "error", err)
		return
	}

	amount := types.MoneyFromMinor(row.AmountMinor).String()
	lecturerAmount := types.MoneyFromMinor(*row.LecturerShare).String()
	refs := notification.Refs{CourseID: &c.ID, EnrollmentID: &row.ID}

	messages := []struct {
		send func(notification.Message) error
		msg  notification.Message
	}{
		{
			send: func(m notification.Message) error { return e.notifier.Notify(ctx, row.StudentID, m) },
			msg: notification.Message{
				Kind:     notification.KindEnrollmentSuccess,
				Title:    "Enrollment confirmed",
				Body:     fmt.Sprintf("You are now enrolled in \"%s\".", c.Title),
				Priority: types.PriorityHigh,
				Refs:     refs,
			},
		},
		{
			send: func(m notification.Message) error { return e.notifier.Notify(ctx, c.LecturerID, m) },
			msg: notification.Message{
				Kind:     notification.KindNewEnrollment,
				Title:    "New enrollment",
				Body:     fmt.Sprintf("A student enrolled in \"%s\".", c.Title),
				Priority: types.PriorityMedium,
				Refs:     refs,
				SenderID: &row.StudentID,
			},
		},
		{
			send: func(m notification.Message) error { return e.notifier.Notify(ctx, c.LecturerID, m) },
			msg: notification.Message{
				Kind:     notification.KindPaymentReceived,
				Title:    "Payment received",
				Body:     fmt.Sprintf("You earned %s %s from \"%s\".", lecturerAmount, row.Currency, c.Title),
				Priority: types.PriorityMedium,
				Refs:     refs,
			},
		},
		{
			send: func(m notification.Message) error { return e.notifier.NotifyRole(ctx, types.UserTypeAdmin, m) },
			msg: notification.Message{
				Kind:     notification.KindPaymentReceived,
				Title:    "Payment received",
				Body:     fmt.Sprintf("%s %s received for \"%s\".", amount, row.Currency, c.Title),
				Priority: types.PriorityLow,
				Refs:     refs,
			},
		},
	}

	for _, m := range messages {
		if err := m.send(m.msg); err != nil {
			e.logger.Warn("failed to send settlement notification", "enrollmentId", row.ID, "kind", m.msg.Kind, "error", err)
		}
	}
}

func resultOf(row enrollment.Enrollment) *Result {
	r := &Result{
		EnrollmentID:  row.ID,
		StudentID:     row.StudentID,
		CourseID:      row.CourseID,
		PaymentStatus: row.PaymentStatus,
		AmountMinor:   row.AmountMinor,
		Currency:      row.Currency,
	}
	if row.AdminShare != nil {
		r.AdminShare = *row.AdminShare
	}
	if row.LecturerShare != nil {
		r.LecturerShare = *row.LecturerShare
	}
	if row.SettledAt != nil {
		r.SettledAt = row.SettledAt.UTC()
	}
	return r
}

// gatewayError keeps ErrGatewayUnavailable matchable while tagging the failure as upstream.
func gatewayError(err error) error {
	return apperrors.Upstream("Payment gateway is unavailable.", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
}
