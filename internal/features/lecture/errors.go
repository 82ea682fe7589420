package lecture

import "errors"

var (
	ErrLectureNotFound  = errors.New("lecture not found")
	ErrTitleRequired    = errors.New("lecture title is required")
	ErrInvalidDuration  = errors.New("lecture duration must be greater than zero")
	ErrCoveredTooLong   = errors.New("covered duration must be between zero and the lecture duration")
	ErrInvalidOrder     = errors.New("lecture position must not be negative")
	ErrVideoUnavailable = errors.New("video hosting is not configured")
)
