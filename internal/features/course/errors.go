package course

import "errors"

var (
	ErrCourseNotFound       = errors.New("course not found")
	ErrTitleRequired        = errors.New("course title is required")
	ErrDescriptionRequired  = errors.New("course description is required")
	ErrInvalidPrice         = errors.New("course price must be greater than zero")
	ErrNotOwner             = errors.New("course belongs to another lecturer")
	ErrCourseHasStudents    = errors.New("course has paid enrollments and cannot be deleted")
)
