package model

import "errors"

var (
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrStoreUnavailable      = errors.New("registration store unavailable")
	ErrCorruptData           = errors.New("corrupt registration data")
	ErrInvalidRegistration   = errors.New("invalid registration")
	ErrInvalidRegistrationID = errors.New("invalid registration ID")
	ErrUnknownVariant        = errors.New("unknown registration type")
	ErrRequestRejected       = errors.New("registration request rejected by store")
)

type ValidationError struct {
	Field   string
	Message string
	Code    string
}

// ValidationErrors collects field problems. It matches ErrInvalidRegistration
// under errors.Is.
type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ErrInvalidRegistration.Error()
	}

	return ErrInvalidRegistration.Error() + ": " + v.Errors[0].Message
}

func (v *ValidationErrors) Unwrap() error {
	return ErrInvalidRegistration
}

func (v *ValidationErrors) Add(field, message, code string) {
	v.Errors = append(v.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}

// IsRetryable reports whether a caller may retry the failed operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, ErrCorruptData)
}
