package review

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

const maxCommentLength = 1000

// Review is a student's rating of a course they paid for.
type Review struct {
	types.BaseModel

	CourseID     uuid.UUID `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_reviews_course_user,priority:1" json:"courseId"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;column:user_id;uniqueIndex:idx_reviews_course_user,priority:2" json:"userId"`
	Rating       int       `gorm:"not null" json:"rating"`
	Comment      string    `gorm:"type:text;not null" json:"comment"`
	HelpfulCount int       `gorm:"not null;column:helpful_count" json:"helpfulCount"`
}

// TableName overrides the default table name.
func (Review) TableName() string { return "reviews" }

// WithAuthor adds the reviewer's public profile.
type WithAuthor struct {
	Review
	AuthorName  string  `json:"authorName"`
	AuthorImage *string `json:"authorImage,omitempty"`
}

// Stats summarises the ratings of one course.
type Stats struct {
	TotalReviews  int64   `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
}

func validate(rating int, comment string) (string, error) {
	if rating < 1 || rating > 5 {
		return "", ErrInvalidRating
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return "", ErrCommentTooLong
	}
	return comment, nil
}

// Get retrieves a review by ID.
func Get(db *gorm.DB, id uuid.UUID) (Review, error) {
	var review Review
	if err := db.First(&review, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return review, ErrReviewNotFound
		}
		return review, err
	}
	return review, nil
}

func getOwned(db *gorm.DB, id, userID uuid.UUID) (Review, error) {
	review, err := Get(db, id)
	if err != nil {
		return review, err
	}
	if review.UserID != userID {
		return Review{}, ErrReviewNotFound
	}
	return review, nil
}

// Create stores a review. Only students with a settled enrollment may review, once per course.
func Create(db *gorm.DB, userID, courseID uuid.UUID, rating int, comment string) (Review, error) {
	comment, err := validate(rating, comment)
	if err != nil {
		return Review{}, err
	}

	e, err := enrollment.FindForStudentCourse(db, userID, courseID)
	if err != nil {
		if errors.Is(err, enrollment.ErrEnrollmentNotFound) {
			return Review{}, ErrNotEnrolled
		}
		return Review{}, err
	}
	if !e.Settled() {
		return Review{}, ErrNotEnrolled
	}

	review := Review{CourseID: courseID, UserID: userID, Rating: rating, Comment: comment}
	if err := db.Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Review{}, ErrAlreadyReviewed
		}
		return Review{}, err
	}
	return review, nil
}

// Update edits the caller's own review.
func Update(db *gorm.DB, id, userID uuid.UUID, rating *int, comment *string) (Review, error) {
	existing, err := getOwned(db, id, userID)
	if err != nil {
		return existing, err
	}

	nextRating := existing.Rating
	if rating != nil {
		nextRating = *rating
	}
	nextComment := existing.Comment
	if comment != nil {
		nextComment = *comment
	}

	nextComment, err = validate(nextRating, nextComment)
	if err != nil {
		return existing, err
	}

	if err := db.Model(&existing).Updates(map[string]interface{}{
		"rating":  nextRating,
		"comment": nextComment,
	}).Error; err != nil {
		return existing, err
	}

	existing.Rating = nextRating
	existing.Comment = nextComment
	return existing, nil
}

// Delete removes the caller's own review.
func Delete(db *gorm.DB, id, userID uuid.UUID) error {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&Review{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// MarkHelpful increments the helpful counter and returns the new value.
func MarkHelpful(db *gorm.DB, id uuid.UUID) (int, error) {
	result := db.Model(&Review{}).Where("id = ?", id).
		UpdateColumn("helpful_count", gorm.Expr("helpful_count + ?", 1))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrReviewNotFound
	}

	var count int
	err := db.Model(&Review{}).Where("id = ?", id).Select("helpful_count").Row().Scan(&count)
	return count, err
}

// ListByCourse returns a course's reviews, newest first, with their authors.
func ListByCourse(db *gorm.DB, courseID uuid.UUID) ([]WithAuthor, error) {
	var rows []WithAuthor
	err := db.Table("reviews").
		Select("reviews.*, users.full_name AS author_name, users.profile_image AS author_image").
		Joins("LEFT JOIN users ON users.id = reviews.user_id").
		Where("reviews.course_id = ?", courseID).
		Order("reviews.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// StatsFor computes rating statistics for many courses at once. Courses without
// reviews are absent from the result.
func StatsFor(db *gorm.DB, courseIDs []uuid.UUID) (map[uuid.UUID]Stats, error) {
	result := make(map[uuid.UUID]Stats, len(courseIDs))
	if len(courseIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		CourseID uuid.UUID
		Total    int64
		Average  float64
	}
	err := db.Model(&Review{}).
		Select("course_id, COUNT(*) AS total, AVG(rating) AS average").
		Where("course_id IN ?", courseIDs).
		Group("course_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.CourseID] = Stats{TotalReviews: row.Total, AverageRating: roundRating(row.Average)}
	}
	return result, nil
}

func roundRating(value float64) float64 {
	return math.Round(value*10) / 10
}
