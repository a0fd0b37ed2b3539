// Package errs carries the protocol error taxonomy. Every entry point of the
// court and dispute cores fails fast with one of these kinds; state is never
// partially mutated on failure.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind uint8

const (
	Config Kind = iota + 1
	Capacity
	State
	Authorization
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Capacity:
		return "capacity"
	case State:
		return "state"
	case Authorization:
		return "authorization"
	default:
		return "unknown"
	}
}

type protocolError struct {
	kind Kind
	msg  string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func New(kind Kind, msg string) error {
	return &protocolError{kind: kind, msg: msg}
}

func Errorf(kind Kind, format string, args ...interface{}) error {
	return &protocolError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err while preserving its kind.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// KindOf returns the kind of err, or 0 for errors outside the taxonomy.
func KindOf(err error) Kind {
	var pe *protocolError
	if errors.As(err, &pe) {
		return pe.kind
	}
	return 0
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
