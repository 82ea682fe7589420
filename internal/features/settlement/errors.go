package settlement

import "errors"

var (
	ErrCourseNotVisible   = errors.New("course is not available for purchase")
	ErrPaymentNotComplete = errors.New("payment has not completed")
	ErrGatewayUnavailable = errors.New("payment gateway is unavailable")
	ErrInvalidSource      = errors.New("invalid settlement source")
	ErrOwnCourse          = errors.New("lecturers cannot purchase their own course")

	errMalformedEvent = errors.New("webhook event object is malformed")
)
