package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes aggregate failure semantics across domains.
type ErrorCode string

const (
	CodeNotFound            ErrorCode = "not_found"
	CodeConstraintViolation ErrorCode = "constraint_violation"
	CodeTransaction         ErrorCode = "transaction"
	CodeValidation          ErrorCode = "validation"
	CodeConflict            ErrorCode = "conflict"
	CodeRetryable           ErrorCode = "retryable"
	CodeInternal            ErrorCode = "internal"
)

// Error is the canonical aggregate error wrapper.
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
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an aggregate error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with aggregate error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// NotFound reports that id of kind does not resolve to a stored entity.
func NotFound(op, kind string, id int64) error {
	return NewError(CodeNotFound, op, fmt.Sprintf("%s %d not found", kind, id), nil)
}

// ConstraintViolation reports an operation that would break a model invariant.
func ConstraintViolation(op, message string) error {
	return NewError(CodeConstraintViolation, op, message, nil)
}

// TransactionError wraps a failure raised inside a unit of work. The cause is
// mandatory; a nil cause yields nil.
func TransactionError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return NewError(CodeTransaction, op, "unit of work failed: "+cause.Error(), cause)
}

// IsCode reports whether any aggregate error in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var aggErr *Error
		if !errors.As(err, &aggErr) {
			return false
		}
		if aggErr.Code == code {
			return true
		}
		err = aggErr.Cause
	}
	return false
}

// CodeOf extracts the outermost aggregate error code when available.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// RootCodeOf returns the innermost aggregate error code in err's chain.
func RootCodeOf(err error) ErrorCode {
	var code ErrorCode
	for err != nil {
		var aggErr *Error
		if !errors.As(err, &aggErr) {
			break
		}
		code = aggErr.Code
		err = aggErr.Cause
	}
	return code
}

func IsNotFound(err error) bool            { return IsCode(err, CodeNotFound) }
func IsConstraintViolation(err error) bool { return IsCode(err, CodeConstraintViolation) }
func IsTransaction(err error) bool         { return IsCode(err, CodeTransaction) }
