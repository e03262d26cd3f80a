// Package vrperr classifies failures into the three categories callers act on:
// internal faults, invalid input and routing-provider failures.
package vrperr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindInternal Kind = iota + 1
	KindInput
	KindRouting
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindInput:
		return "input"
	case KindRouting:
		return "routing"
	}
	return "unknown"
}

// Code is the legacy numeric solution code: 1 internal, 2 input, 3 routing.
// Success is 0 and has no Kind.
func (k Kind) Code() int {
	switch k {
	case KindInput:
		return 2
	case KindRouting:
		return 3
	}
	return 1
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrInternal = errors.New("internal error")
	ErrInput    = errors.New("input error")
	ErrRouting  = errors.New("routing error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInput:
		return ErrInput
	case KindRouting:
		return ErrRouting
	}
	return ErrInternal
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind.sentinel() }

func Internalf(format string, args ...any) error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...)}
}

func Inputf(format string, args ...any) error {
	return &Error{Kind: KindInput, Msg: fmt.Sprintf(format, args...)}
}

func Routingf(format string, args ...any) error {
	return &Error{Kind: KindRouting, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. An err that already carries a kind keeps it.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		kind = e.Kind
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the category of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromCode rebuilds an error from a legacy solution code. Code 0 yields nil.
func FromCode(code int, msg string) error {
	switch code {
	case 0:
		return nil
	case 2:
		return &Error{Kind: KindInput, Msg: msg}
	case 3:
		return &Error{Kind: KindRouting, Msg: msg}
	}
	return &Error{Kind: KindInternal, Msg: msg}
}
