package review

import "errors"

var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrAlreadyReviewed = errors.New("you have already reviewed this course")
	ErrNotEnrolled     = errors.New("you must be enrolled in this course to leave a review")
	ErrCommentTooLong  = errors.New("comment must be at most 1000 characters")
)
