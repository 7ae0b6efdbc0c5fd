// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the persistence layer.
package service

import (
	"errors"
	"fmt"

	"github.com/boulderhaus/clubhouse/internal/store"
)

// Kind classifies a service error so handlers can pick the HTTP status.
type Kind int

const (
	// KindNotFound: the entity does not exist.
	KindNotFound Kind = iota + 1
	// KindForbidden: visibility, tag or role denial. Deliberately distinct
	// from NotFound so callers can tell "exists but hidden" from "absent".
	KindForbidden
	// KindConflict: already attending, already queued, event full.
	KindConflict
	// KindPrecondition: timing, debt, intake, coach presence, sessions.
	KindPrecondition
	// KindInternal: store I/O failure.
	KindInternal
)

// Error carries a classification and a message naming the specific failed
// check. The message specificity is part of the API contract: clients drive
// their UI from it.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// NotFound builds a KindNotFound error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Forbidden builds a KindForbidden error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Precondition builds a KindPrecondition error.
func Precondition(msg string) *Error { return &Error{Kind: KindPrecondition, Message: msg} }

// Internal wraps a store failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}

// KindOf extracts the classification; unknown errors are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// orNotFound maps store.ErrNotFound to a NotFound with msg, anything else
// to Internal.
func orNotFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return NotFound(msg)
	}
	return Internal(err)
}
