package enrollment

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/lecture"
)

// ProgressInput replaces the stored learning state of an enrollment.
type ProgressInput struct {
	CompletedLectures []uuid.UUID
	Positions         map[uuid.UUID]Position
	CurrentTopicID    *uuid.UUID
	CurrentLectureID  *uuid.UUID
}

// SaveProgress stores a student's progress for a course. Only settled enrollments
// accept progress; completed lectures and playback positions for lectures outside the
// current course tree are dropped before the percentage is computed.
func SaveProgress(db *gorm.DB, studentID, courseID uuid.UUID, input ProgressInput, now time.Time) (Progress, error) {
	e, err := FindForStudentCourse(db, studentID, courseID)
	if err != nil {
		return Progress{}, err
	}
	if !e.Settled() {
		return Progress{}, ErrNotSettled
	}

	lectureIDs, err := lecture.IDsByCourse(db, courseID)
	if err != nil {
		return Progress{}, err
	}
	current := make(map[uuid.UUID]struct{}, len(lectureIDs))
	for _, id := range lectureIDs {
		current[id] = struct{}{}
	}

	completed := make([]uuid.UUID, 0, len(input.CompletedLectures))
	seen := make(map[uuid.UUID]struct{}, len(input.CompletedLectures))
	for _, id := range input.CompletedLectures {
		if _, ok := current[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		completed = append(completed, id)
	}

	positions := make(map[uuid.UUID]Position, len(input.Positions))
	for id, pos := range input.Positions {
		if pos.Current < 0 || pos.Duration < 0 {
			return Progress{}, ErrInvalidProgress
		}
		if _, ok := current[id]; !ok {
			continue
		}
		pos.LastAccessedAt = now
		positions[id] = pos
	}

	completedJSON, err := json.Marshal(completed)
	if err != nil {
		return Progress{}, err
	}
	positionsJSON, err := json.Marshal(positions)
	if err != nil {
		return Progress{}, err
	}

	percent := Percent(len(completed), len(lectureIDs))
	updates := map[string]interface{}{
		"completed_lectures": datatypes.JSON(completedJSON),
		"positions":          datatypes.JSON(positionsJSON),
		"cursor_topic_id":    input.CurrentTopicID,
		"cursor_lecture_id":  input.CurrentLectureID,
		"last_accessed_at":   now,
		"percent_complete":   percent,
		"updated_at":         now,
	}
	if err := db.Model(&Enrollment{}).Where("id = ?", e.ID).Updates(updates).Error; err != nil {
		return Progress{}, err
	}

	return Progress{
		EnrollmentID:      e.ID,
		CourseID:          courseID,
		CompletedLectures: completed,
		Positions:         positions,
		Cursor:            Cursor{TopicID: input.CurrentTopicID, LectureID: input.CurrentLectureID},
		LastAccessedAt:    &now,
		PercentComplete:   percent,
	}, nil
}

// GetProgress returns the stored progress of a settled enrollment.
func GetProgress(db *gorm.DB, studentID, courseID uuid.UUID) (Progress, error) {
	e, err := FindForStudentCourse(db, studentID, courseID)
	if err != nil {
		return Progress{}, err
	}
	if !e.Settled() {
		return Progress{}, ErrNotSettled
	}
	return ProgressOf(e), nil
}

// Percent rounds completed/total to a whole percentage; an empty course is 0%.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
