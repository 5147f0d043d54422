// Package errs provides the unified error type used across all of dbkit.
//
// Every subsystem (database drivers, schema extraction, validation, report
// storage) wraps its native errors into *errs.Error before returning them.
// Callers use the Is* predicates to branch on the kind of failure without
// importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", pgErr)
//
//	// In a caller, check the kind:
//	if errs.IsNotFound(err) {
//	    // table absent
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no table, no object
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConflict                 // unique key violation
	ErrKindValidation               // declared model and live table disagree
	ErrKindConfiguration            // unusable model or settings
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConflict:
		return "conflict"
	case ErrKindValidation:
		return "validation"
	case ErrKindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all dbkit subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConflict reports whether err is a unique key violation.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

// IsValidation reports whether err describes a model/database mismatch.
func IsValidation(err error) bool {
	return KindOf(err) == ErrKindValidation
}

// IsConfiguration reports whether err was caused by an unusable model or setting.
func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
