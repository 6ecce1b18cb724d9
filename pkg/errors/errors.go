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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Scheduling conflicts. Every rejected write carries the specific rule it
// violated so the caller can correct the request; none of these are retried
// automatically.
var (
	ErrTeacherDoubleBooked  = New("TEACHER_DOUBLE_BOOKED", http.StatusConflict, "teacher already teaches another section in this slot")
	ErrRoomDoubleBooked     = New("ROOM_DOUBLE_BOOKED", http.StatusConflict, "room already hosts another section in this slot")
	ErrSectionSlotOccupied  = New("SECTION_SLOT_OCCUPIED", http.StatusConflict, "section already has a subject in this slot")
	ErrGradeSubjectMismatch = New("GRADE_SUBJECT_MISMATCH", http.StatusUnprocessableEntity, "subject is not eligible for the section's grade level")
	ErrInvalidSlotType      = New("INVALID_SLOT_TYPE", http.StatusUnprocessableEntity, "periods can only be assigned to regular slots")
	ErrTeacherUnavailable   = New("TEACHER_UNAVAILABLE", http.StatusConflict, "teacher is blocked out for this slot")
	ErrRoomUnavailable      = New("ROOM_UNAVAILABLE", http.StatusConflict, "room is blocked out for this slot")
	ErrSubstituteBooked     = New("SUBSTITUTE_BOOKED", http.StatusConflict, "substitute already has a commitment at this slot and date")
	ErrSubstitutionExists   = New("SUBSTITUTION_EXISTS", http.StatusConflict, "an active substitution already exists for this period and date")
)

// Substitution lifecycle and store-level conflicts.
var (
	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "substitution status transition not permitted")
	ErrTooEarly               = New("TOO_EARLY", http.StatusConflict, "substitution date has not passed yet")
	ErrConcurrentModification = New("CONCURRENT_MODIFICATION", http.StatusConflict, "concurrent modification, retry budget exhausted")
	ErrTimeout                = New("TIMEOUT", http.StatusGatewayTimeout, "request deadline exceeded before commit")
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
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
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

// HasCode reports whether err carries the given domain code. Predefined
// errors are frequently cloned or wrapped, so code equality is the identity.
func HasCode(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
