package catalog

import "errors"

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrLectureNotFound = errors.New("lecture not found")
	ErrNotEnrolled     = errors.New("enroll in this course to watch its lectures")
	ErrNoVideo         = errors.New("lecture video is not available yet")
)
