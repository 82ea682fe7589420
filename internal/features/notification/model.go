package notification

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Kind names the event a notification reports.
type Kind string

const (
	KindCourseSubmitted   Kind = "course_submitted"
	KindCourseApproved    Kind = "course_approved"
	KindCourseRejected    Kind = "course_rejected"
	KindCourseUpdated     Kind = "course_updated"
	KindTopicSubmitted    Kind = "topic_submitted"
	KindTopicApproved     Kind = "topic_approved"
	KindTopicRejected     Kind = "topic_rejected"
	KindLectureSubmitted  Kind = "lecture_submitted"
	KindLectureApproved   Kind = "lecture_approved"
	KindLectureRejected   Kind = "lecture_rejected"
	KindNewEnrollment     Kind = "new_enrollment"
	KindEnrollmentSuccess Kind = "enrollment_success"
	KindPaymentReceived   Kind = "payment_received"
	KindPaymentFailed     Kind = "payment_failed"
	KindNewReview         Kind = "new_review"
	KindWelcome           Kind = "welcome"
	KindSystem            Kind = "system"
)

// Refs points a notification at the objects it concerns.
type Refs struct {
	CourseID     *uuid.UUID `json:"courseId,omitempty"`
	TopicID      *uuid.UUID `json:"topicId,omitempty"`
	LectureID    *uuid.UUID `json:"lectureId,omitempty"`
	EnrollmentID *uuid.UUID `json:"enrollmentId,omitempty"`
	ReviewID     *uuid.UUID `json:"reviewId,omitempty"`
}

// Notification is a durable message for one recipient.
type Notification struct {
	types.BaseModel

	RecipientID uuid.UUID      `gorm:"type:uuid;not null;column:recipient_id;index:idx_notifications_recipient_read,priority:1" json:"recipientId"`
	SenderID    *uuid.UUID     `gorm:"type:uuid;column:sender_id" json:"senderId,omitempty"`
	Kind        Kind           `gorm:"type:varchar(40);not null" json:"type"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	Priority    types.Priority `gorm:"type:varchar(10);not null" json:"priority"`
	Refs        datatypes.JSON `json:"refs,omitempty"`
	Read        bool           `gorm:"not null;column:is_read;index:idx_notifications_recipient_read,priority:2" json:"isRead"`
	ReadAt      *time.Time     `gorm:"column:read_at" json:"readAt,omitempty"`
	ExpiresAt   time.Time      `gorm:"not null;column:expires_at;index" json:"expiresAt"`
}

// TableName overrides the default table name.
func (Notification) TableName() string { return "notifications" }

// DecodeRefs returns the typed context references.
func (n Notification) DecodeRefs() Refs {
	var refs Refs
	if len(n.Refs) > 0 {
		_ = json.Unmarshal(n.Refs, &refs)
	}
	return refs
}

func encodeRefs(refs Refs) datatypes.JSON {
	raw, err := json.Marshal(refs)
	if err != nil || string(raw) == "{}" {
		return nil
	}
	return datatypes.JSON(raw)
}

// ListFilters narrows a recipient's notification list.
type ListFilters struct {
	UnreadOnly bool
	Kind       Kind
}

// List returns the live notifications of a recipient, newest first.
func List(db *gorm.DB, recipientID uuid.UUID, filters ListFilters, params pagination.Params, now time.Time) ([]Notification, int64, error) {
	query := db.Model(&Notification{}).
		Where("recipient_id = ? AND expires_at > ?", recipientID, now)

	if filters.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if filters.Kind != "" {
		query = query.Where("kind = ?", filters.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Notification
	if err := query.Order("created_at DESC").Offset(params.Skip).Limit(params.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// UnreadCount returns the number of unread, unexpired notifications.
func UnreadCount(db *gorm.DB, recipientID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := db.Model(&Notification{}).
		Where("recipient_id = ? AND is_read = ? AND expires_at > ?", recipientID, false, now).
		Count(&count).Error
	return count, err
}

// MarkRead flags one notification of the recipient as read.
func MarkRead(db *gorm.DB, recipientID, id uuid.UUID, now time.Time) (Notification, error) {
	var item Notification
	if err := db.First(&item, "id = ? AND recipient_id = ?", id, recipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return item, ErrNotificationNotFound
		}
		return item, err
	}

	if item.Read {
		return item, nil
	}

	if err := db.Model(&item).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return item, err
	}
	item.Read = true
	item.ReadAt = &now
	return item, nil
}

// MarkAllRead flags every unread notification of the recipient as read.
func MarkAllRead(db *gorm.DB, recipientID uuid.UUID, now time.Time) (int64, error) {
	result := db.Model(&Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

// Delete removes one notification of the recipient.
func Delete(db *gorm.DB, recipientID, id uuid.UUID) error {
	result := db.Where("id = ? AND recipient_id = ?", id, recipientID).Delete(&Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Clear removes every notification of the recipient.
func Clear(db *gorm.DB, recipientID uuid.UUID) (int64, error) {
	result := db.Where("recipient_id = ?", recipientID).Delete(&Notification{})
	return result.RowsAffected, result.Error
}

// PurgeExpired deletes notifications whose expiry has passed.
func PurgeExpired(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Where("expires_at <= ?", now).Delete(&Notification{})
	return result.RowsAffected, result.Error
}
