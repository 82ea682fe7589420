package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/pkg/metrics"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Event is the socket.io event name used for pushed notifications.
const Event = "notification"

// Pusher delivers a real-time payload to one user's connections.
type Pusher interface {
	EmitToUser(userID uuid.UUID, event string, payload interface{})
}

// Mailer sends a plain notification e-mail.
type Mailer interface {
	SendNotification(to, title, message string) error
}

// Sender is the delivery surface other features depend on. *Fanout implements it.
type Sender interface {
	Notify(ctx context.Context, recipientID uuid.UUID, msg Message) error
	NotifyMany(ctx context.Context, recipients []uuid.UUID, msg Message) error
	NotifyRole(ctx context.Context, role types.UserType, msg Message) error
}

// Message is what a caller wants to tell one or more users.
type Message struct {
	Kind     Kind
	Title    string
	Body     string
	Priority types.Priority
	Refs     Refs
	SenderID *uuid.UUID
}

// Fanout stores notifications and pushes them over the live channels.
type Fanout struct {
	db     *gorm.DB
	logger *slog.Logger
	pusher Pusher
	mailer Mailer
	ttl    time.Duration
	now    func() time.Time
}

// NewFanout builds a fanout. pusher and mailer may be nil.
func NewFanout(db *gorm.DB, logger *slog.Logger, pusher Pusher, mailer Mailer, ttlDays int) *Fanout {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &Fanout{
		db:     db,
		logger: logger,
		pusher: pusher,
		mailer: mailer,
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
		now:    time.Now,
	}
}

// Notify delivers a message to one recipient.
func (f *Fanout) Notify(ctx context.Context, recipientID uuid.UUID, msg Message) error {
	return f.NotifyMany(ctx, []uuid.UUID{recipientID}, msg)
}

// NotifyRole delivers a message to every active user with the role.
func (f *Fanout) NotifyRole(ctx context.Context, role types.UserType, msg Message) error {
	ids, err := user.IDsByType(f.db.WithContext(ctx), role)
	if err != nil {
		return err
	}
	return f.NotifyMany(ctx, ids, msg)
}

// NotifyMany stores one row per recipient, then pushes and mails best-effort.
// Only the store step can fail the call.
func (f *Fanout) NotifyMany(ctx context.Context, recipients []uuid.UUID, msg Message) error {
	recipients = dedupe(recipients)
	if len(recipients) == 0 {
		return nil
	}

	if msg.Priority == "" {
		msg.Priority = types.PriorityMedium
	}
	if !msg.Priority.Valid() {
		return ErrInvalidPriority
	}
	if msg.Title == "" || msg.Body == "" {
		return ErrMissingContent
	}

	now := f.now()
	refs := encodeRefs(msg.Refs)
	rows := make([]Notification, 0, len(recipients))
	for _, id := range recipients {
		rows = append(rows, Notification{
			RecipientID: id,
			SenderID:    msg.SenderID,
			Kind:        msg.Kind,
			Title:       msg.Title,
			Message:     msg.Body,
			Priority:    msg.Priority,
			Refs:        refs,
			ExpiresAt:   now.Add(f.ttl),
		})
	}

	if err := f.db.WithContext(ctx).Create(&rows).Error; err != nil {
		metrics.RecordNotification("store", err)
		return err
	}
	metrics.RecordNotification("store", nil)

	if f.pusher != nil {
		for _, row := range rows {
			f.pusher.EmitToUser(row.RecipientID, Event, row)
		}
		metrics.RecordNotification("push", nil)
	}

	if f.mailer != nil && (msg.Priority == types.PriorityHigh || msg.Priority == types.PriorityUrgent) {
		f.mail(ctx, recipients, msg)
	}

	return nil
}

func (f *Fanout) mail(ctx context.Context, recipients []uuid.UUID, msg Message) {
	var emails []string
	if err := f.db.WithContext(ctx).Model(&user.User{}).
		Where("id IN ? AND is_active = ?", recipients, true).
		Pluck("email", &emails).Error; err != nil {
		f.logger.Warn("failed to resolve notification e-mails", "kind", msg.Kind, "error", err)
		return
	}

	go func() {
		var errs []error
		for _, addr := range emails {
			if err := f.mailer.SendNotification(addr, msg.Title, msg.Body); err != nil {
				errs = append(errs, err)
			}
		}
		err := errors.Join(errs...)
		metrics.RecordNotification("email", err)
		if err != nil {
			f.logger.Warn("failed to e-mail notification", "kind", msg.Kind, "error", err)
		}
	}()
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
