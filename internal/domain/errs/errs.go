// Package errs defines the error kinds raised by the escrow domain.
//
// Domain methods wrap one of these sentinels with context; callers classify
// failures with errors.Is regardless of how many layers wrapped them.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrCurrencyMismatch       = errors.New("currency mismatch")
	ErrDivideByZero           = errors.New("divide by zero")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
)

// New wraps kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Transition reports an attempted transition the current status does not allow.
func Transition(aggregate, action, from string) error {
	return fmt.Errorf("%w: cannot %s %s in status %q", ErrInvalidStateTransition, action, aggregate, from)
}

// Kind returns the sentinel carried by err, or nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrCurrencyMismatch,
		ErrDivideByZero,
		ErrInsufficientFunds,
		ErrInvalidStateTransition,
		ErrInvalidOperation,
		ErrNotFound,
		ErrUnauthorized,
		ErrConcurrencyConflict,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
