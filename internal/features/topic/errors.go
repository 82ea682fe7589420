package topic

import "errors"

var (
	ErrTopicNotFound = errors.New("topic not found")
	ErrTitleRequired = errors.New("topic title is required")
	ErrInvalidOrder  = errors.New("topic position must not be negative")
)
