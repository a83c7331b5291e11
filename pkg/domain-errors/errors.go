// Package domainerrors defines the error taxonomy services return to callers.
//
// Every error carries a Code. Transports translate codes into protocol
// statuses; services translate store sentinels into codes. Codes are stable
// and safe to surface verbatim to the UI layer.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed input (missing documents, bad fields).
	CodeValidation Code = "validation_error"
	// CodeInvalidState marks a transition attempted from a state that disallows it.
	CodeInvalidState Code = "invalid_state"
	// CodeInsufficientCredits marks credit consumption with a zero balance.
	CodeInsufficientCredits Code = "insufficient_credits"
	// CodeForbidden marks a caller lacking ownership or privilege.
	CodeForbidden Code = "permission_denied"
	// CodeExternalService marks an unreachable or failing collaborator.
	CodeExternalService Code = "external_service_error"

	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error. The optional cause is kept for logs and
// errors.Is/As chains but never rendered to clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without an underlying cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// CodeOf returns the code of the outermost coded error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// MessageOf returns the client-safe message of a coded error, or a generic
// message for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
