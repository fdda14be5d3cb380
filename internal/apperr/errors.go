// Package apperr defines the error kinds returned by the discovery and
// engagement core. Callers match on kind with errors.Is against the Err*
// sentinels.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidCoordinate      Kind = "invalid_coordinate"
	KindInvalidTransition      Kind = "invalid_transition"
	KindTerminalStateViolation Kind = "terminal_state_violation"
	KindUnknownCurrency        Kind = "unknown_currency"
	KindValidation             Kind = "validation_error"
	KindNotFound               Kind = "not_found"
	KindForbidden              Kind = "forbidden"
	KindConflict               Kind = "conflict"
)

var (
	ErrInvalidCoordinate      = &Error{Kind: KindInvalidCoordinate}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrTerminalStateViolation = &Error{Kind: KindTerminalStateViolation}
	ErrUnknownCurrency        = &Error{Kind: KindUnknownCurrency}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrConflict               = &Error{Kind: KindConflict}
)

// Error carries a kind plus the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so errors.Is(err, ErrInvalidTransition) matches
// any *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
