package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies why an aggregate write failed. Transport layers map
// codes to status codes; callers decide on retries by code alone.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeForbidden          ErrorCode = "forbidden"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

// Error carries the code plus the operation that produced it. Cause keeps the
// domain error so errors.Is(err, errs.ErrInsufficientFunds) still works.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		return string(e.Code)
	}
	return fmt.Sprintf("%s (%s)", b.String(), e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap tags err with code, reusing its text as the message.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns "" for errors that never passed through an aggregate.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// Transient reports whether re-running the same command may succeed: a lost
// optimistic-lock race or a transient database failure.
func Transient(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeRetryable:
		return true
	}
	return false
}

// Decided reports whether the domain rejected the command on its merits.
// Repeating it without new input yields the same answer.
func Decided(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeNotFound, CodeInvariantViolation, CodePreconditionFailed, CodeForbidden:
		return true
	}
	return false
}
