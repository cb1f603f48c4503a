// Package apperr defines the error kinds surfaced by the model layer.
// Every failure a caller can react to carries a Code and a human-readable message.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code int

const (
	// InternalServerError is used for failures that are not caused by the caller.
	InternalServerError Code = 1

	// ObjectNotFound means the targeted record does not exist or is soft-deleted.
	ObjectNotFound Code = 101

	// InvalidQuery means a caller-supplied constraint tree or sort spec is malformed.
	InvalidQuery Code = 102

	// InvalidObjectKey means a supplied value failed validation, a type-tag check,
	// or was rejected by a beforeSave hook.
	InvalidObjectKey Code = 105

	// ForbiddenOperation means the schema has an illegal shape.
	ForbiddenOperation Code = 119

	// MissingConfiguration means the schema is incomplete.
	MissingConfiguration Code = 120
)

var codeNames = map[Code]string{
	InternalServerError:  "InternalServerError",
	ObjectNotFound:       "ObjectNotFound",
	InvalidQuery:         "InvalidQuery",
	InvalidObjectKey:     "InvalidObjectKey",
	ForbiddenOperation:   "ForbiddenOperation",
	MissingConfiguration: "MissingConfiguration",
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is an immutable coded error.
type Error struct {
	Code    Code
	Message string
}

// New creates a coded error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	if len(args) == 0 {
		return &Error{Code: code, Message: format}
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error with the same code.
// This allows errors.Is(err, &apperr.Error{Code: apperr.InvalidObjectKey}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain,
// or InternalServerError when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalServerError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
