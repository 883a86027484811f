// Package apperr defines coded errors shared by the services and the HTTP
// layer. A code tells callers how to react (not found vs. invalid input vs.
// conflict) without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error.
type Code string

const (
	CodeNotFound    Code = "not_found"
	CodeValidation  Code = "validation"
	CodeConflict    Code = "conflict"
	CodeRateLimited Code = "rate_limited"
	CodeInternal    Code = "internal"
)

// Error is a coded application error. Err is the optional underlying cause.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error wrapping cause (which may be nil).
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// NotFound reports a missing entity.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Validation reports invalid input, optionally per field.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

// Conflict reports a state conflict such as a concurrent run or an illegal
// status transition.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// CodeOf extracts the code of the first *Error in err's chain. Errors without
// one are internal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
