package session

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes terminal session failures.
type ErrorKind string

const (
	// KindVersionMismatch: the client speaks another protocol version and
	// must reload.
	KindVersionMismatch ErrorKind = "VERSION_MISMATCH"

	// KindUnauthorized: credentials did not resolve to an account.
	KindUnauthorized ErrorKind = "UNAUTHORIZED"

	// KindBadRequest: the request body does not match the protocol schema.
	KindBadRequest ErrorKind = "BAD_REQUEST"

	// KindInternal: the store failed while resolving deltas.
	KindInternal ErrorKind = "INTERNAL"
)

// Error is a terminal failure of one sync request. Mutation failures are
// never Errors; they are reported in the response's actionResult.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a session error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// BadRequest wraps a decode or schema failure.
func BadRequest(err error) *Error {
	return &Error{Kind: KindBadRequest, Message: "malformed request", Err: err}
}
