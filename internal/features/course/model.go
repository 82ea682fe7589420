package course

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/moderation"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Course is a lecturer's priced offering, moderated before students can see it.
type Course struct {
	types.BaseModel

	LecturerID      uuid.UUID        `gorm:"type:uuid;not null;column:lecturer_id;index" json:"lecturerId"`
	Title           string           `gorm:"type:varchar(150);not null" json:"title"`
	Description     string           `gorm:"type:text;not null" json:"description"`
	Price           types.Money      `gorm:"type:numeric(10,2);not null" json:"price"`
	Thumbnail       *string          `gorm:"type:text" json:"thumbnail,omitempty"`
	CollectionID    *string          `gorm:"type:varchar(255);column:collection_id" json:"-"`
	Status          moderation.State `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason *string          `gorm:"type:text;column:rejection_reason" json:"rejectionReason,omitempty"`
}

// TableName overrides the default table name.
func (Course) TableName() string { return "courses" }

// WithStats decorates a course with its enrollment figures for the owner.
type WithStats struct {
	Course
	EnrolledStudents int64 `json:"enrolledStudents"`
	PendingPayments  int64 `json:"pendingPayments"`
}

// ListFilters defines course query filters.
type ListFilters struct {
	LecturerID *uuid.UUID
	Status     *moderation.State
	Keyword    string
}

// CreateInput carries data for creating a new course.
type CreateInput struct {
	LecturerID  uuid.UUID
	Title       string
	Description string
	Price       types.Money
	Thumbnail   *string
}

// UpdateInput captures fields the owner may change.
type UpdateInput struct {
	Title       *string
	Description *string
	Price       *types.Money
}

// List retrieves paginated courses with filters.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Course, int64, error) {
	query := db.Model(&Course{})

	if filters.LecturerID != nil {
		query = query.Where("lecturer_id = ?", *filters.LecturerID)
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", keyword, keyword)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []Course
	err := query.
		Order("created_at DESC").
		Offset(params.Skip).
		Limit(params.Limit).
		Find(&courses).Error

	return courses, total, err
}

// Get retrieves a course by ID.
func Get(db *gorm.DB, id uuid.UUID) (Course, error) {
	var course Course
	if err := db.First(&course, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return course, ErrCourseNotFound
		}
		return course, err
	}
	return course, nil
}

// GetOwned retrieves a course that belongs to the lecturer.
func GetOwned(db *gorm.DB, id, lecturerID uuid.UUID) (Course, error) {
	course, err := Get(db, id)
	if err != nil {
		return course, err
	}
	if course.LecturerID != lecturerID {
		return course, ErrNotOwner
	}
	return course, nil
}

// Create inserts a new course in the pending state.
func Create(db *gorm.DB, input CreateInput) (Course, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Course{}, ErrTitleRequired
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return Course{}, ErrDescriptionRequired
	}

	if !input.Price.Decimal().IsPositive() {
		return Course{}, ErrInvalidPrice
	}

	course := Course{
		LecturerID:  input.LecturerID,
		Title:       title,
		Description: description,
		Price:       types.Money(input.Price.Decimal().Round(2)),
		Thumbnail:   input.Thumbnail,
		Status:      moderation.StatePending,
	}

	if err := db.Create(&course).Error; err != nil {
		return Course{}, err
	}

	return course, nil
}

// Update applies an owner edit. The moderation state is left as it was.
func Update(db *gorm.DB, id uuid.UUID, input UpdateInput) (Course, error) {
	course, err := Get(db, id)
	if err != nil {
		return course, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return course, ErrTitleRequired
		}
		course.Title = title
	}

	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return course, ErrDescriptionRequired
		}
		course.Description = description
	}

	if input.Price != nil {
		if !input.Price.Decimal().IsPositive() {
			return course, ErrInvalidPrice
		}
		course.Price = types.Money(input.Price.Decimal().Round(2))
	}

	course.Status = moderation.AfterOwnerEdit(moderation.KindCourse, course.Status)

	if err := db.Save(&course).Error; err != nil {
		return course, err
	}

	return course, nil
}

// SetStatus records a moderator decision. The reason is kept only for rejections.
func SetStatus(db *gorm.DB, id uuid.UUID, to moderation.State, reason *string) (Course, error) {
	course, err := Get(db, id)
	if err != nil {
		return course, err
	}

	next, err := moderation.Transition(course.Status, to)
	if err != nil {
		return course, err
	}

	course.Status = next
	course.RejectionReason = nil
	if next == moderation.StateRejected {
		course.RejectionReason = reason
	}

	if err := db.Model(&Course{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           course.Status,
		"rejection_reason": course.RejectionReason,
	}).Error; err != nil {
		return course, err
	}

	return course, nil
}

// SetThumbnail stores the thumbnail URL.
func SetThumbnail(db *gorm.DB, id uuid.UUID, url *string) error {
	return db.Model(&Course{}).Where("id = ?", id).Update("thumbnail", url).Error
}

// SetCollection stores the video collection created for the course.
func SetCollection(db *gorm.DB, id uuid.UUID, collectionID string) error {
	return db.Model(&Course{}).Where("id = ?", id).Update("collection_id", collectionID).Error
}

// EnrollmentCounts returns settled and pending enrollment counts per course.
func EnrollmentCounts(db *gorm.DB, courseIDs []uuid.UUID) (map[uuid.UUID]WithStats, error) {
	type row struct {
		CourseID      uuid.UUID `gorm:"column:course_id"`
		PaymentStatus string    `gorm:"column:payment_status"`
		Total         int64     `gorm:"column:total"`
	}

	out := make(map[uuid.UUID]WithStats, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}

	var rows []row
	if err := db.Table("enrollments").
		Select("course_id, payment_status, COUNT(*) AS total").
		Where("course_id IN ?", courseIDs).
		Group("course_id, payment_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, r := range rows {
		stats := out[r.CourseID]
		switch types.PaymentStatus(r.PaymentStatus) {
		case types.PaymentStatusSettled:
			stats.EnrolledStudents = r.Total
		case types.PaymentStatusPending:
			stats.PendingPayments = r.Total
		}
		out[r.CourseID] = stats
	}
	return out, nil
}

// HasSettledEnrollments reports whether any student has paid for the course.
func HasSettledEnrollments(db *gorm.DB, courseID uuid.UUID) (bool, error) {
	var count int64
	err := db.Table("enrollments").
		Where("course_id = ? AND payment_status = ?", courseID, types.PaymentStatusSettled).
		Count(&count).Error
	return count > 0, err
}

// PendingIntentRefs returns the gateway intents of the course's unsettled enrollments.
func PendingIntentRefs(db *gorm.DB, courseID uuid.UUID) ([]string, error) {
	var refs []string
	err := db.Table("enrollments").
		Where("course_id = ? AND payment_status = ?", courseID, types.PaymentStatusPending).
		Pluck("external_intent_ref", &refs).Error
	return refs, err
}

// EnrolledStudentIDs returns the students holding a settled enrollment in the course.
func EnrolledStudentIDs(db *gorm.DB, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Table("enrollments").
		Where("course_id = ? AND payment_status = ?", courseID, types.PaymentStatusSettled).
		Pluck("student_id", &ids).Error
	return ids, err
}
