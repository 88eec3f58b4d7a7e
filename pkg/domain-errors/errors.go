// Package domainerrors defines the error vocabulary shared by services and
// transports. Services attach a Code so handlers can map failures to HTTP
// status codes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal_error"
)

// Error carries a machine-readable code alongside a human message. The wrapped
// cause, when present, is preserved for errors.Is/As chains.
type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code { return e.code }

// Message returns the human-readable description without the cause chain.
func (e *Error) Message() string { return e.message }

// CodeOf extracts the domain error code from an error chain. Unrecognized
// errors are treated as internal so transports never leak raw causes.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable message from an error chain.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.message
	}
	return "internal error"
}
