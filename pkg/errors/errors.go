package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal

	// Pipeline error codes
	ErrUnknownDevice
	ErrDuplicateDevice
	ErrInvalidEvent
	ErrTemplate
	ErrTransient
	ErrPermanent
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// UnknownDevice is returned when an operation references a device id that is
// not registered.
func UnknownDevice(id string) *AppError {
	return &AppError{
		Code:    ErrUnknownDevice,
		Message: fmt.Sprintf("unknown device %q", id),
	}
}

// DuplicateDevice is returned when registering a device whose id or address
// is already taken.
func DuplicateDevice(id string) *AppError {
	return &AppError{
		Code:    ErrDuplicateDevice,
		Message: fmt.Sprintf("duplicate device %q", id),
	}
}

// InvalidEvent marks a raw event that cannot be classified. The pipeline
// drops these with a warning, it never stops.
func InvalidEvent(reason string) *AppError {
	return &AppError{
		Code:    ErrInvalidEvent,
		Message: fmt.Sprintf("invalid event: %s", reason),
	}
}

// Template is returned when rendering fails on an unresolvable placeholder.
// Jobs hitting this are terminal, re-rendering cannot succeed.
func Template(placeholder string) *AppError {
	return &AppError{
		Code:    ErrTemplate,
		Message: fmt.Sprintf("unresolved template placeholder {%s}", placeholder),
	}
}

// Transient marks a retryable delivery failure (timeout, 5xx-equivalent).
func Transient(err error) *AppError {
	return &AppError{
		Code:    ErrTransient,
		Message: "transient delivery failure",
		Err:     err,
	}
}

// Permanent marks a delivery failure that must not be retried.
func Permanent(err error) *AppError {
	return &AppError{
		Code:    ErrPermanent,
		Message: "permanent delivery failure",
		Err:     err,
	}
}

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsTransient(err error) bool { return IsCode(err, ErrTransient) }
func IsPermanent(err error) bool { return IsCode(err, ErrPermanent) }
