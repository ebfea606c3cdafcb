package ptz

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures for callers.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidArgument   Kind = "invalid_argument"
	KindConflict          Kind = "conflict"
)

// Sentinel errors, one per Kind.
// These errors can be checked using errors.Is().
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Msg: "invalid transition"}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument, Msg: "invalid argument"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "conflict"}
)

// Error is a recoverable, caller-facing engine error.
type Error struct {
	Kind Kind   // machine-readable
	Op   string // operation that failed, e.g. "preset.remove"
	Msg  string // human-readable detail
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, format, args...)
}

func InvalidTransition(op, format string, args ...any) error {
	return newError(KindInvalidTransition, op, format, args...)
}

func InvalidArgument(op, format string, args ...any) error {
	return newError(KindInvalidArgument, op, format, args...)
}

func Conflict(op, format string, args ...any) error {
	return newError(KindConflict, op, format, args...)
}

// KindOf returns the Kind carried by err, or "" when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
