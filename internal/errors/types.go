// Package errors defines the service error taxonomy (NotFound, BadRequest)
// and panic recovery helpers.
package errors

import (
	"errors"
	"fmt"
)

// CodeOutsideServiceWindow marks a BadRequest raised when an action falls
// outside a contract's allowed service window; its Details payload lets a
// client render an actionable message and retry with a manager override.
const CodeOutsideServiceWindow = "OUTSIDE_SERVICE_WINDOW"

// NotFoundError indicates a referenced record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NotFound creates a NotFoundError for a resource and identifier
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// BadRequestError indicates a state or policy violation: contract not active,
// schedule not configured, conflicting assignment, or an action outside the
// service window without a valid override.
type BadRequestError struct {
	Message string
	// Code is a machine-readable marker, set for structured cases like
	// CodeOutsideServiceWindow
	Code string
	// Details carries the structured payload for cases a client must be able
	// to act on (timezone, local time, allowed window, override availability)
	Details map[string]interface{}
}

// Error implements the error interface
func (e *BadRequestError) Error() string {
	return e.Message
}

// BadRequest creates a plain BadRequestError
func BadRequest(format string, args ...interface{}) *BadRequestError {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// BadRequestWithDetails creates a BadRequestError carrying a code and a
// structured detail payload
func BadRequestWithDetails(message, code string, details map[string]interface{}) *BadRequestError {
	return &BadRequestError{Message: message, Code: code, Details: details}
}

// IsBadRequest reports whether err is (or wraps) a BadRequestError
func IsBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}

// AsBadRequest unwraps err to a BadRequestError when possible
func AsBadRequest(err error) (*BadRequestError, bool) {
	var br *BadRequestError
	if errors.As(err, &br) {
		return br, true
	}
	return nil, false
}
