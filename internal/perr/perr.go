// Package perr defines the closed set of tagged failures used across the
// control plane. Business logic returns these; only the HTTP and WebSocket
// adapters translate them into transport-specific codes.
package perr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindPrecondition Kind = "precondition"
	KindBackend     Kind = "backend"
	KindTransient   Kind = "transient"
)

// Error is a tagged failure. Reason is short and human-readable; it is safe
// to surface to API callers. Err, when set, is the wrapped cause and is only
// ever logged, never serialized.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}

func Auth(reason string) *Error             { return new_(KindAuth, reason, nil) }
func NotFound(reason string) *Error         { return new_(KindNotFound, reason, nil) }
func Conflict(reason string) *Error         { return new_(KindConflict, reason, nil) }
func Precondition(reason string) *Error     { return new_(KindPrecondition, reason, nil) }
func Backend(reason string, cause error) *Error   { return new_(KindBackend, reason, cause) }
func Transient(reason string, cause error) *Error { return new_(KindTransient, reason, cause) }

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the kind of err, defaulting to KindBackend for untagged
// errors so callers never have to special-case "unknown".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}
