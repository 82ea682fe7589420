package notification

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidPriority      = errors.New("invalid notification priority")
	ErrInvalidRecipient     = errors.New("invalid recipient")
	ErrMissingContent       = errors.New("title and message are required")
)
