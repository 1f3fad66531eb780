package models

import "strconv"

// ErrorCode classifies a GrievanceError
type ErrorCode string

const (
	CodeValidation                ErrorCode = "validation_error"
	CodeNotFound                  ErrorCode = "not_found"
	CodeIndexUnavailable          ErrorCode = "index_unavailable"
	CodeStoreUnavailable          ErrorCode = "store_unavailable"
	CodeInvalidTransition         ErrorCode = "invalid_transition"
	CodeMissingDuplicateReference ErrorCode = "missing_duplicate_reference"
	CodeActorRequired             ErrorCode = "actor_required"
	CodeVersionConflict           ErrorCode = "version_conflict"
	CodeDispatchFailure           ErrorCode = "dispatch_failure"
)

// Sentinels for errors.Is. Any GrievanceError with the same code matches.
var (
	ErrValidation                = &GrievanceError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound                  = &GrievanceError{Code: CodeNotFound, Message: "complaint not found"}
	ErrIndexUnavailable          = &GrievanceError{Code: CodeIndexUnavailable, Message: "duplicate index unavailable"}
	ErrStoreUnavailable          = &GrievanceError{Code: CodeStoreUnavailable, Message: "complaint store unavailable"}
	ErrInvalidTransition         = &GrievanceError{Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrMissingDuplicateReference = &GrievanceError{Code: CodeMissingDuplicateReference, Message: "duplicate status requires a reference to the original complaint"}
	ErrActorRequired             = &GrievanceError{Code: CodeActorRequired, Message: "actor is required"}
	ErrVersionConflict           = &GrievanceError{Code: CodeVersionConflict, Message: "complaint was modified concurrently"}
	ErrDispatchFailure           = &GrievanceError{Code: CodeDispatchFailure, Message: "notification dispatch failed"}
)

// GrievanceError is the error type returned by the grievance core
type GrievanceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *GrievanceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *GrievanceError) Unwrap() error {
	return e.Err
}

// Is matches on Code so that errors.Is(err, ErrVersionConflict) works for
// every error carrying that code, not just the sentinel itself.
func (e *GrievanceError) Is(target error) bool {
	t, ok := target.(*GrievanceError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewValidationError builds a ValidationError with a caller-facing message
func NewValidationError(message string) *GrievanceError {
	return &GrievanceError{Code: CodeValidation, Message: message}
}

// NewStoreError wraps a storage failure
func NewStoreError(op string, err error) *GrievanceError {
	return &GrievanceError{Code: CodeStoreUnavailable, Message: "failed to " + op, Err: err}
}

// NewIndexError wraps a duplicate index failure
func NewIndexError(err error) *GrievanceError {
	return &GrievanceError{Code: CodeIndexUnavailable, Message: "duplicate index query failed", Err: err}
}

// NewInvalidTransitionError describes the rejected move
func NewInvalidTransitionError(from, to ComplaintStatus) *GrievanceError {
	return &GrievanceError{
		Code:    CodeInvalidTransition,
		Message: "invalid status transition from " + string(from) + " to " + string(to),
	}
}

// NewNotFoundError reports a missing complaint id
func NewNotFoundError(id string) *GrievanceError {
	return &GrievanceError{Code: CodeNotFound, Message: "complaint " + id + " not found"}
}

// NewVersionConflictError reports a failed optimistic write
func NewVersionConflictError(id string, expected int64) *GrievanceError {
	return &GrievanceError{
		Code:    CodeVersionConflict,
		Message: "complaint " + id + " is no longer at version " + strconv.FormatInt(expected, 10),
	}
}
