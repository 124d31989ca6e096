// Package ferr defines the closed error taxonomy shared by every fuzzing
// subsystem. Since the fuzzer core must distinguish control-flow signals
// (ShuttingDown, IteratorEnd) from real failures, it is a closed Kind enum
// rather than ad hoc sentinel values.
package ferr

import (
	"errors"
	"fmt"
)

// Kind enumerates the fixed set of error categories the fuzzing core can
// produce. The set is intentionally closed: new components report through
// one of these, they do not invent new kinds.
type Kind int

const (
	Unknown Kind = iota
	Serialize
	Compression
	File
	EmptyOptional
	KeyNotFound
	Empty
	IteratorEnd
	NotImplemented
	IllegalState
	IllegalArgument
	Forkserver
	ShuttingDown
)

func (k Kind) String() string {
	switch k {
	case Serialize:
		return "serialize"
	case Compression:
		return "compression"
	case File:
		return "file"
	case EmptyOptional:
		return "empty_optional"
	case KeyNotFound:
		return "key_not_found"
	case Empty:
		return "empty"
	case IteratorEnd:
		return "iterator_end"
	case NotImplemented:
		return "not_implemented"
	case IllegalState:
		return "illegal_state"
	case IllegalArgument:
		return "illegal_argument"
	case Forkserver:
		return "forkserver"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Error is the concrete error value carried across the fuzzer. It always
// belongs to exactly one Kind and optionally wraps an underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given Kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given Kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err (or something in its Unwrap chain) is a *Error of
// the given Kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
