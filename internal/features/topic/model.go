package topic

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Topic groups lectures inside a course and is moderated on its own.
type Topic struct {
	types.BaseModel

	CourseID        uuid.UUID        `gorm:"type:uuid;not null;column:course_id;index" json:"courseId"`
	Title           string           `gorm:"type:varchar(150);not null" json:"title"`
	Position        int              `gorm:"not null" json:"position"`
	Status          moderation.State `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason *string          `gorm:"type:text;column:rejection_reason" json:"rejectionReason,omitempty"`
}

// TableName overrides the default table name.
func (Topic) TableName() string { return "topics" }

// CreateInput carries data for a new topic.
type CreateInput struct {
	CourseID uuid.UUID
	Title    string
	Position *int
}

// UpdateInput captures fields the owner may change.
type UpdateInput struct {
	Title    *string
	Position *int
}

// ListByCourse returns a course's topics in display order.
func ListByCourse(db *gorm.DB, courseID uuid.UUID, status *moderation.State) ([]Topic, error) {
	query := db.Where("course_id = ?", courseID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var topics []Topic
	err := query.Order("position ASC, created_at ASC").Find(&topics).Error
	return topics, err
}

// ListByStatus returns topics across courses in a given state, oldest first.
func ListByStatus(db *gorm.DB, status moderation.State) ([]Topic, error) {
	var topics []Topic
	err := db.Where("status = ?", status).Order("created_at ASC").Find(&topics).Error
	return topics, err
}

// Get retrieves a topic by ID.
func Get(db *gorm.DB, id uuid.UUID) (Topic, error) {
	var topic Topic
	if err := db.First(&topic, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return topic, ErrTopicNotFound
		}
		return topic, err
	}
	return topic, nil
}

// GetOwned retrieves a topic together with its course, checking the course owner.
func GetOwned(db *gorm.DB, id, lecturerID uuid.UUID) (Topic, course.Course, error) {
	topic, err := Get(db, id)
	if err != nil {
		return topic, course.Course{}, err
	}
	parent, err := course.GetOwned(db, topic.CourseID, lecturerID)
	if err != nil {
		return topic, parent, err
	}
	return topic, parent, nil
}

// Create inserts a pending topic, appending it after existing ones unless a position is given.
func Create(db *gorm.DB, input CreateInput) (Topic, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Topic{}, ErrTitleRequired
	}

	position := 0
	if input.Position != nil {
		if *input.Position < 0 {
			return Topic{}, ErrInvalidOrder
		}
		position = *input.Position
	} else {
		last := -1
		if err := db.Model(&Topic{}).
			Where("course_id = ?", input.CourseID).
			Select("COALESCE(MAX(position), -1)").
			Row().Scan(&last); err != nil {
			return Topic{}, err
		}
		position = last + 1
	}

	topic := Topic{
		CourseID: input.CourseID,
		Title:    title,
		Position: position,
		Status:   moderation.StatePending,
	}

	if err := db.Create(&topic).Error; err != nil {
		return Topic{}, err
	}
	return topic, nil
}

// Update applies an owner edit and sends the topic back to review.
// Sibling topics, lectures and the course keep their states.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Topic, error) {
	topic, err := Get(db, id)
	if err != nil {
		return topic, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return topic, ErrTitleRequired
		}
		topic.Title = title
	}

	if input.Position != nil {
		if *input.Position < 0 {
			return topic, ErrInvalidOrder
		}
		topic.Position = *input.Position
	}

	topic.Status = moderation.AfterOwnerEdit(moderation.KindTopic, topic.Status)
	topic.RejectionReason = nil

	if err := db.Save(&topic).Error; err != nil {
		return topic, err
	}
	return topic, nil
}

// SetStatus records a moderator decision on the topic only.
func SetStatus(db *gorm.DB, id uuid.UUID, to moderation.State, reason *string) (Topic, error) {
	topic, err := Get(db, id)
	if err != nil {
		return topic, err
	}

	next, err := moderation.Transition(topic.Status, to)
	if err != nil {
		return topic, err
	}

	topic.Status = next
	topic.RejectionReason = nil
	if next == moderation.StateRejected {
		topic.RejectionReason = reason
	}

	if err := db.Model(&Topic{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           topic.Status,
		"rejection_reason": topic.RejectionReason,
	}).Error; err != nil {
		return topic, err
	}
	return topic, nil
}
