// Package domainerrors carries coded errors across layers. Services return
// these so transports can translate them without string matching.
//
// Import as:
//
//	dErrors "checkin/pkg/domain-errors"
package domainerrors

import (
	"errors"
)

// Code is a stable, machine-readable error identifier exposed to clients.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	// Visit business rules.
	CodeAlreadyVisited       Code = "already_visited"
	CodeAttendeeNotFound     Code = "attendee_not_found"
	CodeOrganizationNotFound Code = "organization_not_found"

	// Throughput and availability.
	CodeRateLimited        Code = "rate_limited"
	CodeTimeout            Code = "timeout"
	CodeStorageUnavailable Code = "storage_unavailable"
	CodeServiceUnavailable Code = "service_unavailable"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in the chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// IsBusiness reports expected domain rejections. They are terminal, never
// retried, and never count against infrastructure health.
func IsBusiness(err error) bool {
	switch CodeOf(err) {
	case CodeAlreadyVisited, CodeAttendeeNotFound, CodeOrganizationNotFound,
		CodeValidation, CodeInvalidInput, CodeBadRequest, CodeNotFound, CodeRateLimited:
		return true
	}
	return false
}

// IsTransient reports infrastructure faults a caller may retry later.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeTimeout, CodeStorageUnavailable, CodeServiceUnavailable:
		return true
	}
	return false
}
