package enrollment

import "errors"

var (
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyEnrolled    = errors.New("student is already enrolled in this course")
	ErrNotSettled         = errors.New("enrollment payment is not settled")
	ErrNotPending         = errors.New("enrollment is not pending")
	ErrInvalidProgress    = errors.New("invalid progress payload")
)
