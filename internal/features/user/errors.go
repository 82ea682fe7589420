package user

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already exists")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
	ErrMissingFields   = errors.New("full name and email are required")
	ErrInvalidUserType = errors.New("invalid user type")
	ErrSelfDeactivate  = errors.New("cannot deactivate your own account")
)
