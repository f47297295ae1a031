package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable category reported for caller-facing failures.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration_error"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindProvider      ErrorKind = "provider_error"
	KindIntegrity     ErrorKind = "integrity_error"
	KindValidation    ErrorKind = "validation_error"
	KindRateLimited   ErrorKind = "rate_limited"
	KindInternal      ErrorKind = "internal_error"
)

// Conflict reasons. Both are returned wrapped in an *Error of KindConflict.
var (
	ErrBusy     = errors.New("round already in progress")
	ErrComplete = errors.New("simulation already complete")
)

// Error is a categorized failure with an optional offending field.
type Error struct {
	Kind   ErrorKind
	Field  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

// NewConfigError reports an invalid simulation parameter.
func NewConfigError(field, reason string) *Error {
	return &Error{Kind: KindConfiguration, Field: field, Reason: reason}
}

// NewNotFoundError reports an unknown simulation id.
func NewNotFoundError(id string) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf("simulation %s not found", id)}
}

// NewConflictError wraps ErrBusy or ErrComplete.
func NewConflictError(reason error) *Error {
	return &Error{Kind: KindConflict, Err: reason}
}

// NewProviderError wraps a failed decision fetch for one party.
func NewProviderError(p Party, err error) *Error {
	return &Error{Kind: KindProvider, Field: string(p), Reason: "decision failed", Err: err}
}

// NewIntegrityError reports a malformed payoff table.
func NewIntegrityError(reason string) *Error {
	return &Error{Kind: KindIntegrity, Reason: reason}
}

// NewValidationError reports an out-of-range argument.
func NewValidationError(field, reason string) *Error {
	return &Error{Kind: KindValidation, Field: field, Reason: reason}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldOf returns the field of the first *Error in err's chain.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
