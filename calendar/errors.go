package calendar

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindStaleWrite          Kind = "stale_write"
	KindPermissionDenied    Kind = "permission_denied"
	KindRecurrenceLimit     Kind = "recurrence_limit"
	KindFreeBusyUnavailable Kind = "freebusy_unavailable"
	KindDelivery            Kind = "delivery"
	KindNotFound            Kind = "not_found"
)

// Error is the engine-wide error type. Kind drives caller behavior:
// validation and permission errors are never retried, stale writes may be
// retried after a re-fetch, recurrence-limit errors accompany partial
// results.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error wrapping an underlying cause.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err or any error in its chain is an Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == kind {
			return true
		}
		if e.Err == nil {
			return false
		}
		err = e.Err
	}
	return false
}
