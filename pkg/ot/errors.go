package ot

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates engine errors.
type ErrorKind int

const (
	// NoSuchState signals that a received sequence was built against a
	// history point this engine has not reached yet. Recoverable: re-present
	// the sequence after the missing predecessor has been integrated. The
	// engine itself never buffers or retries.
	NoSuchState ErrorKind = iota

	// MalformedSequence signals a structural inconsistency in supplied
	// operations or sequences: a caller or protocol bug. Never retried and
	// never silently corrected; a "fixed" malformed bundle would break
	// convergence across sites.
	MalformedSequence
)

// Error is the single structured error type surfaced by the engine.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	switch e.Kind {
	case NoSuchState:
		return "no such state: " + e.Reason
	case MalformedSequence:
		return "malformed sequence: " + e.Reason
	}
	return e.Reason
}

func newNoSuchState(format string, args ...any) *Error {
	return &Error{Kind: NoSuchState, Reason: fmt.Sprintf(format, args...)}
}

func newMalformed(format string, args ...any) *Error {
	return &Error{Kind: MalformedSequence, Reason: fmt.Sprintf(format, args...)}
}

// IsNoSuchState reports whether err is the recoverable missing-predecessor
// error.
func IsNoSuchState(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == NoSuchState
}

// IsMalformed reports whether err signals a malformed operation stream or
// sequence.
func IsMalformed(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == MalformedSequence
}
