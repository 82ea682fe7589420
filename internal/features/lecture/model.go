package lecture

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Lecture is a single video lesson inside a topic. Durations are in seconds.
type Lecture struct {
	types.BaseModel

	TopicID         uuid.UUID        `gorm:"type:uuid;not null;column:topic_id;index" json:"topicId"`
	CourseID        uuid.UUID        `gorm:"type:uuid;not null;column:course_id;index" json:"courseId"`
	Title           string           `gorm:"type:varchar(150);not null" json:"title"`
	VideoID         *string          `gorm:"type:varchar(255);column:video_id" json:"-"`
	CoveredDuration int              `gorm:"not null;column:covered_duration" json:"coveredDuration"`
	LectureDuration int              `gorm:"not null;column:lecture_duration" json:"lectureDuration"`
	Position        int              `gorm:"not null" json:"position"`
	Status          moderation.State `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason *string          `gorm:"type:text;column:rejection_reason" json:"rejectionReason,omitempty"`
}

// TableName overrides the default table name.
func (Lecture) TableName() string { return "lectures" }

// HasVideo reports whether a video has been attached.
func (l Lecture) HasVideo() bool {
	return l.VideoID != nil && *l.VideoID != ""
}

// CreateInput carries data for a new lecture.
type CreateInput struct {
	TopicID         uuid.UUID
	CourseID        uuid.UUID
	Title           string
	CoveredDuration int
	LectureDuration int
	Position        *int
}

// UpdateInput captures fields the owner may change.
type UpdateInput struct {
	Title           *string
	CoveredDuration *int
	LectureDuration *int
	Position        *int
}

func validateDurations(covered, total int) error {
	if total <= 0 {
		return ErrInvalidDuration
	}
	if covered < 0 || covered > total {
		return ErrCoveredTooLong
	}
	return nil
}

// ListByTopic returns a topic's lectures in display order.
func ListByTopic(db *gorm.DB, topicID uuid.UUID) ([]Lecture, error) {
	var lectures []Lecture
	err := db.Where("topic_id = ?", topicID).Order("position ASC, created_at ASC").Find(&lectures).Error
	return lectures, err
}

// ListByCourse returns every lecture of a course in display order.
func ListByCourse(db *gorm.DB, courseID uuid.UUID) ([]Lecture, error) {
	var lectures []Lecture
	err := db.Where("course_id = ?", courseID).Order("position ASC, created_at ASC").Find(&lectures).Error
	return lectures, err
}

// ListByStatus returns lectures across courses in a given state, oldest first.
func ListByStatus(db *gorm.DB, status moderation.State) ([]Lecture, error) {
	var lectures []Lecture
	err := db.Where("status = ?", status).Order("created_at ASC").Find(&lectures).Error
	return lectures, err
}

// IDsByCourse returns the ids of every lecture currently in the course tree.
func IDsByCourse(db *gorm.DB, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Model(&Lecture{}).Where("course_id = ?", courseID).Pluck("id", &ids).Error
	return ids, err
}

// Get retrieves a lecture by ID.
func Get(db *gorm.DB, id uuid.UUID) (Lecture, error) {
	var lecture Lecture
	if err := db.First(&lecture, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lecture, ErrLectureNotFound
		}
		return lecture, err
	}
	return lecture, nil
}

// GetOwned retrieves a lecture with its course, checking the course owner.
func GetOwned(db *gorm.DB, id, lecturerID uuid.UUID) (Lecture, course.Course, error) {
	lecture, err := Get(db, id)
	if err != nil {
		return lecture, course.Course{}, err
	}
	parent, err := course.GetOwned(db, lecture.CourseID, lecturerID)
	return lecture, parent, err
}

// Create inserts a pending lecture under a topic.
func Create(db *gorm.DB, input CreateInput) (Lecture, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Lecture{}, ErrTitleRequired
	}

	if err := validateDurations(input.CoveredDuration, input.LectureDuration); err != nil {
		return Lecture{}, err
	}

	position := 0
	if input.Position != nil {
		if *input.Position < 0 {
			return Lecture{}, ErrInvalidOrder
		}
		position = *input.Position
	} else {
		last := -1
		if err := db.Model(&Lecture{}).
			Where("topic_id = ?", input.TopicID).
			Select("COALESCE(MAX(position), -1)").
			Row().Scan(&last); err != nil {
			return Lecture{}, err
		}
		position = last + 1
	}

	lecture := Lecture{
		TopicID:         input.TopicID,
		CourseID:        input.CourseID,
		Title:           title,
		CoveredDuration: input.CoveredDuration,
		LectureDuration: input.LectureDuration,
		Position:        position,
		Status:          moderation.StatePending,
	}

	if err := db.Create(&lecture).Error; err != nil {
		return Lecture{}, err
	}
	return lecture, nil
}

// Update applies an owner edit and sends the lecture back to review.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Lecture, error) {
	lecture, err := Get(db, id)
	if err != nil {
		return lecture, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return lecture, ErrTitleRequired
		}
		lecture.Title = title
	}

	if input.CoveredDuration != nil {
		lecture.CoveredDuration = *input.CoveredDuration
	}
	if input.LectureDuration != nil {
		lecture.LectureDuration = *input.LectureDuration
	}
	if err := validateDurations(lecture.CoveredDuration, lecture.LectureDuration); err != nil {
		return lecture, err
	}

	if input.Position != nil {
		if *input.Position < 0 {
			return lecture, ErrInvalidOrder
		}
		lecture.Position = *input.Position
	}

	lecture.Status = moderation.AfterOwnerEdit(moderation.KindLecture, lecture.Status)
	lecture.RejectionReason = nil

	if err := db.Save(&lecture).Error; err != nil {
		return lecture, err
	}
	return lecture, nil
}

// AttachVideo stores a new video id. Replacing the video is an edit, so the lecture returns to review.
func AttachVideo(db *gorm.DB, id uuid.UUID, videoID string) (Lecture, error) {
	lecture, err := Get(db, id)
	if err != nil {
		return lecture, err
	}

	lecture.VideoID = &videoID
	lecture.Status = moderation.AfterOwnerEdit(moderation.KindLecture, lecture.Status)
	lecture.RejectionReason = nil

	if err := db.Save(&lecture).Error; err != nil {
		return lecture, err
	}
	return lecture, nil
}

// SetStatus records a moderator decision on the lecture only.
func SetStatus(db *gorm.DB, id uuid.UUID, to moderation.State, reason *string) (Lecture, error) {
	lecture, err := Get(db, id)
	if err != nil {
		return lecture, err
	}

	next, err := moderation.Transition(lecture.Status, to)
	if err != nil {
		return lecture, err
	}

	lecture.Status = next
	lecture.RejectionReason = nil
	if next == moderation.StateRejected {
		lecture.RejectionReason = reason
	}

	if err := db.Model(&Lecture{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           lecture.Status,
		"rejection_reason": lecture.RejectionReason,
	}).Error; err != nil {
		return lecture, err
	}
	return lecture, nil
}

// Delete removes a lecture.
func Delete(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&Lecture{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLectureNotFound
	}
	return nil
}

// EnsureTopic loads the topic a new lecture goes under and checks that the caller owns its course.
func EnsureTopic(db *gorm.DB, topicID, lecturerID uuid.UUID) (topic.Topic, course.Course, error) {
	return topic.GetOwned(db, topicID, lecturerID)
}
