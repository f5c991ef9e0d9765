// Package apperr defines the error kinds returned by the monitoring core.
// Handlers map a Kind to an HTTP status; the core never returns bare driver errors.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDeviceNotRegistered
	KindMissingIdentifier
	KindInvalidID
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDeviceNotRegistered:
		return "device_not_registered"
	case KindMissingIdentifier:
		return "missing_identifier"
	case KindInvalidID:
		return "invalid_id"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the single error type of the core.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDeviceNotRegistered = &Error{Kind: KindDeviceNotRegistered, Message: "Device not registered"}
	ErrMissingIdentifier   = &Error{Kind: KindMissingIdentifier, Message: "device identifier required"}
	ErrInvalidID           = &Error{Kind: KindInvalidID, Message: "invalid id"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInternal            = &Error{Kind: KindInternal, Message: "internal error"}
)

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func DeviceNotRegistered() *Error {
	return &Error{Kind: KindDeviceNotRegistered, Message: ErrDeviceNotRegistered.Message}
}

func MissingIdentifier() *Error {
	return &Error{Kind: KindMissingIdentifier, Message: ErrMissingIdentifier.Message}
}

func InvalidID(msg string) *Error {
	return &Error{Kind: KindInvalidID, Message: msg}
}

func Conflict(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err; errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
