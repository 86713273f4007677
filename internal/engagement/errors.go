package engagement

import (
	"errors"
	"fmt"
)

// Kind classifies a failed action so callers can react without parsing messages.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidTransition  Kind = "invalid_transition"
	KindPreconditionFailed Kind = "precondition_failed"
	KindConflictOnWrite    Kind = "conflict_on_write"
	KindInvalidInput       Kind = "invalid_input"
)

// Error is returned by every Coordinator operation that rejects an action.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
	ErrConflictOnWrite    = &Error{Kind: KindConflictOnWrite}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
)

// KindOf returns the Kind carried by err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NotFound reports a missing event, poll, option or participant.
func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

// Conflict wraps a uniqueness violation surfaced by storage.
func Conflict(msg string, err error) error {
	return &Error{Kind: KindConflictOnWrite, Msg: msg, Err: err}
}

func newErr(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// withOp stamps op onto a domain error that does not carry one yet.
func withOp(op string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	return err
}
