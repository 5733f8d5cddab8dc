package mutation

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes mutation failures.
type ErrorKind string

const (
	// KindForbidden: the table or a column is not writable by clients.
	KindForbidden ErrorKind = "FORBIDDEN"

	// KindNotFound: the target row does not exist for this account.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindIntegrity: an insert affected an unexpected number of rows.
	KindIntegrity ErrorKind = "INTEGRITY"

	// KindStore: the database failed.
	KindStore ErrorKind = "STORE"

	// KindBadRequest: the action payload has the wrong shape.
	KindBadRequest ErrorKind = "BAD_REQUEST"
)

// Error is returned by every Applier operation that fails. Message is safe
// to show to the client; Err carries the underlying cause for logs.
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

// ClientMessage is the text reported in a response's actionResult. It never
// includes the underlying cause.
func (e *Error) ClientMessage() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf returns the kind of a mutation error, or "" if err is not one.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func badRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func notFound() *Error {
	return &Error{Kind: KindNotFound, Message: "row not found"}
}

func storeError(step string, err error) *Error {
	return &Error{Kind: KindStore, Message: step + " failed", Err: err}
}

func integrity(step string, err error) *Error {
	return &Error{Kind: KindIntegrity, Message: step + " affected an unexpected number of rows", Err: err}
}
