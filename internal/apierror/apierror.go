package apierror

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrorCode represents a unique error code in the system.
type ErrorCode string

const (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrConflict is returned when there's a conflict with the current state of the resource.
	ErrConflict ErrorCode = "CONFLICT"

	// ErrBadRequest is returned when the request is malformed or invalid.
	ErrBadRequest ErrorCode = "BAD_REQUEST"

	// ErrInternalServer is returned when there's an unexpected internal server error.
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// ErrInvalidInput is returned when the input data fails validation.
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
)

// APIError represents a structured error for API responses.
type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError and logs it.
func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	err := APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
	logrus.WithFields(logrus.Fields{
		"error_code": code,
		"details":    details,
	}).Error(message)
	return err
}
