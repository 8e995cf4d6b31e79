package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned errors compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Internal wraps an unexpected failure as INTERNAL_ERROR.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrNoUpdates           = New("NO_UPDATES", http.StatusBadRequest, "no fields to update")
	ErrInvalidState        = New("INVALID_STATE", http.StatusConflict, "operation not allowed in current state")
	ErrInvalidReviewer     = New("INVALID_REVIEWER", http.StatusUnprocessableEntity, "reviewer is not eligible")
	ErrApprovalExists      = New("APPROVAL_EXISTS", http.StatusConflict, "an open approval already exists for this version")
	ErrDuplicateMapping    = New("DUPLICATE_MAPPING", http.StatusConflict, "mapping already exists for this target")
	ErrDuplicateVersion    = New("DUPLICATE_VERSION", http.StatusConflict, "version number already exists for this framework")
	ErrVersionFrozen       = New("VERSION_FROZEN", http.StatusLocked, "version is frozen; structural content is read-only")
	ErrUnauthorized        = New("UNAUTHORIZED", http.StatusForbidden, "actor is not allowed to perform this action")
	ErrUnauthenticated     = New("UNAUTHENTICATED", http.StatusUnauthorized, "authentication required")
	ErrForbidden           = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrCannotDeleteLatest  = New("CANNOT_DELETE_LATEST", http.StatusConflict, "cannot delete the framework's latest version")
	ErrCannotDeleteApplied = New("CANNOT_DELETE_APPLIED", http.StatusConflict, "cannot delete an applied mapping")
	ErrInvalidCampus       = New("INVALID_CAMPUS", http.StatusUnprocessableEntity, "campus does not belong to tenant")
	ErrConflict            = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss           = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// CodeOf returns the domain code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}
