package service

import "errors"

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound indicates no account exists for the given id or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the email already belongs to an account, active or not.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Password change failures. These are reported to the caller as a failed
	// status rather than as an HTTP error.
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordMismatch   = errors.New("new password and confirm new password doesn't match")
	ErrWeakPassword       = errors.New("new password is too short")
	ErrInvalidOldPassword = errors.New("invalid old password")
)

// ValidationError describes the first invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
