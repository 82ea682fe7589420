package enrollment

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

// Enrollment links a student to a course through one payment intent.
// Shares are minor currency units fixed once at settlement.
type Enrollment struct {
	types.BaseModel

	StudentID     uuid.UUID           `gorm:"type:uuid;not null;column:student_id;uniqueIndex:idx_enrollments_student_course,priority:1" json:"studentId"`
	CourseID      uuid.UUID           `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_enrollments_student_course,priority:2;index" json:"courseId"`
	PaymentStatus types.PaymentStatus `gorm:"type:varchar(20);not null;column:payment_status;index" json:"paymentStatus"`
	IntentRef     string              `gorm:"type:varchar(255);not null;column:external_intent_ref;uniqueIndex" json:"intentRef"`
	PriceSnapshot types.Money         `gorm:"type:numeric(10,2);not null;column:price_snapshot" json:"priceSnapshot"`
	AmountMinor   int64               `gorm:"not null;column:amount_minor" json:"amountMinor"`
	Currency      string              `gorm:"type:varchar(3);not null" json:"currency"`
	AdminShare    *int64              `gorm:"column:admin_share" json:"adminShare,omitempty"`
	LecturerShare *int64              `gorm:"column:lecturer_share" json:"lecturerShare,omitempty"`
	SettledAt     *time.Time          `gorm:"column:settled_at;index" json:"settledAt,omitempty"`
	SettledVia    *string             `gorm:"type:varchar(20);column:settled_via" json:"settledVia,omitempty"`

	CompletedLectures datatypes.JSON `gorm:"column:completed_lectures" json:"-"`
	Positions         datatypes.JSON `gorm:"column:positions" json:"-"`
	CursorTopicID     *uuid.UUID     `gorm:"type:uuid;column:cursor_topic_id" json:"-"`
	CursorLectureID   *uuid.UUID     `gorm:"type:uuid;column:cursor_lecture_id" json:"-"`
	LastAccessedAt    *time.Time     `gorm:"column:last_accessed_at" json:"lastAccessedAt,omitempty"`
	PercentComplete   int            `gorm:"not null;column:percent_complete" json:"percentComplete"`
}

// TableName overrides the default table name.
func (Enrollment) TableName() string { return "enrollments" }

// Settled reports whether the enrollment grants access.
func (e Enrollment) Settled() bool {
	return e.PaymentStatus == types.PaymentStatusSettled
}

// Position is the last known playback state of one lecture.
type Position struct {
	Current        float64   `json:"current"`
	Duration       float64   `json:"duration"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// Cursor marks where the student left off.
type Cursor struct {
	TopicID   *uuid.UUID `json:"topicId,omitempty"`
	LectureID *uuid.UUID `json:"lectureId,omitempty"`
}

// Progress is the read projection of an enrollment's learning state.
type Progress struct {
	EnrollmentID      uuid.UUID              `json:"enrollmentId"`
	CourseID          uuid.UUID              `json:"courseId"`
	CompletedLectures []uuid.UUID            `json:"completedLectures"`
	Positions         map[uuid.UUID]Position `json:"videoProgress"`
	Cursor            Cursor                 `json:"cursor"`
	LastAccessedAt    *time.Time             `json:"lastAccessedAt,omitempty"`
	PercentComplete   int                    `json:"progressPercentage"`
}

// ListFilters narrows the admin enrollment list.
type ListFilters struct {
	StudentID     *uuid.UUID
	CourseID      *uuid.UUID
	PaymentStatus *types.PaymentStatus
	PendingBefore *time.Time
}

// CreatePending inserts a pending enrollment. The unique (student, course) index turns a
// concurrent duplicate into ErrAlreadyEnrolled.
func CreatePending(db *gorm.DB, e *Enrollment) error {
	e.PaymentStatus = types.PaymentStatusPending
	e.AdminShare = nil
	e.LecturerShare = nil
	e.SettledAt = nil

	if err := db.Create(e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyEnrolled
		}
		return err
	}
	return nil
}

// Get retrieves an enrollment by ID.
func Get(db *gorm.DB, id uuid.UUID) (Enrollment, error) {
	return first(db, "id = ?", id)
}

// GetByIntentRef retrieves the enrollment created for a payment intent.
func GetByIntentRef(db *gorm.DB, intentRef string) (Enrollment, error) {
	return first(db, "external_intent_ref = ?", intentRef)
}

// FindForStudentCourse retrieves the enrollment of a student in a course, in any state.
func FindForStudentCourse(db *gorm.DB, studentID, courseID uuid.UUID) (Enrollment, error) {
	return first(db, "student_id = ? AND course_id = ?", studentID, courseID)
}

func first(db *gorm.DB, query string, args ...interface{}) (Enrollment, error) {
	var e Enrollment
	if err := db.Where(query, args...).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return e, ErrEnrollmentNotFound
		}
		return e, err
	}
	return e, nil
}

// Settlement is the data written by the pending to settled transition.
type Settlement struct {
	AdminShare    int64
	LecturerShare int64
	SettledAt     time.Time
	Source        string
}

// MarkSettled moves a pending enrollment to settled in one conditional update.
// It returns true only for the caller whose update changed the row.
func MarkSettled(db *gorm.DB, id uuid.UUID, s Settlement) (bool, error) {
	result := db.Model(&Enrollment{}).
		Where("id = ? AND payment_status = ?", id, types.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status": types.PaymentStatusSettled,
			"admin_share":    s.AdminShare,
			"lecturer_share": s.LecturerShare,
			"settled_at":     s.SettledAt,
			"settled_via":    s.Source,
			"updated_at":     s.SettledAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Supersede deletes a pending enrollment so the student can start a new purchase.
// Settled enrollments are never removed.
func Supersede(db *gorm.DB, id uuid.UUID) (Enrollment, error) {
	e, err := Get(db, id)
	if err != nil {
		return e, err
	}

	result := db.Where("id = ? AND payment_status = ?", id, types.PaymentStatusPending).Delete(&Enrollment{})
	if result.Error != nil {
		return e, result.Error
	}
	if result.RowsAffected == 0 {
		return e, ErrNotPending
	}
	return e, nil
}

// ListForStudent returns a student's enrollments, newest first.
func ListForStudent(db *gorm.DB, studentID uuid.UUID, status *types.PaymentStatus) ([]Enrollment, error) {
	query := db.Where("student_id = ?", studentID)
	if status != nil {
		query = query.Where("payment_status = ?", *status)
	}

	var items []Enrollment
	err := query.Order("created_at DESC").Find(&items).Error
	return items, err
}

// List returns enrollments for administrators.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Enrollment, int64, error) {
	query := db.Model(&Enrollment{})

	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.PendingBefore != nil {
		query = query.Where("payment_status = ? AND created_at < ?", types.PaymentStatusPending, *filters.PendingBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Enrollment
	err := query.Order("created_at DESC").Offset(params.Skip).Limit(params.Limit).Find(&items).Error
	return items, total, err
}

// CountStalePending counts pending enrollments created before the cutoff.
func CountStalePending(db *gorm.DB, cutoff time.Time) (int64, error) {
	var count int64
	err := db.Model(&Enrollment{}).
		Where("payment_status = ? AND created_at < ?", types.PaymentStatusPending, cutoff).
		Count(&count).Error
	return count, err
}

// ProgressOf decodes the stored learning state.
func ProgressOf(e Enrollment) Progress {
	p := Progress{
		EnrollmentID:      e.ID,
		CourseID:          e.CourseID,
		CompletedLectures: []uuid.UUID{},
		Positions:         map[uuid.UUID]Position{},
		Cursor:            Cursor{TopicID: e.CursorTopicID, LectureID: e.CursorLectureID},
		LastAccessedAt:    e.LastAccessedAt,
		PercentComplete:   e.PercentComplete,
	}
	if len(e.CompletedLectures) > 0 {
		_ = json.Unmarshal(e.CompletedLectures, &p.CompletedLectures)
	}
	if len(e.Positions) > 0 {
		_ = json.Unmarshal(e.Positions, &p.Positions)
	}
	return p
}
