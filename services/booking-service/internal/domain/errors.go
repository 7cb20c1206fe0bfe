package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrExternalFailure   = errors.New("external failure")
	ErrValidation        = errors.New("validation failed")
)

// Error is a domain rule violation: one kind, the operation it came from and
// a human readable reason. Err optionally carries the underlying cause.
type Error struct {
	Kind   error
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFound(op, entity, id string) error {
	return &Error{Kind: ErrNotFound, Op: op, Reason: fmt.Sprintf("%s %s", entity, id)}
}

func InvalidTransition(op, entity string, from, to fmt.Stringer) error {
	return &Error{Kind: ErrInvalidTransition, Op: op, Reason: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to)}
}

func Conflict(op, reason string) error {
	return &Error{Kind: ErrConflict, Op: op, Reason: reason}
}

func Unauthorized(op, reason string) error {
	return &Error{Kind: ErrUnauthorized, Op: op, Reason: reason}
}

func ExternalFailure(op, reason string, cause error) error {
	return &Error{Kind: ErrExternalFailure, Op: op, Reason: reason, Err: cause}
}

func Validation(op, reason string) error {
	return &Error{Kind: ErrValidation, Op: op, Reason: reason}
}

// KindOf returns the kind of err, or nil for infrastructure errors.
func KindOf(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalidTransition, ErrConflict, ErrUnauthorized, ErrExternalFailure, ErrValidation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ReasonOf returns the reason of the outermost *Error in err's chain.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
