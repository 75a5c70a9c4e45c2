// Package apperror defines the error taxonomy shared by the order engine,
// payment recorder and table registry. Errors carry a Kind so transport
// layers can map them without string matching.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a business error
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidOperation Kind = "invalid_operation"
	KindValidation       Kind = "validation"
)

// Sentinels for errors.Is comparisons
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrValidation       = errors.New("validation failed")
)

// Error is a classified error with a human-readable message
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "order.CancelOrder"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and any wrapped cause
func (e *Error) Unwrap() []error {
	errs := []error{sentinel(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinel(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	default:
		return ErrInvalidOperation
	}
}

// NotFound builds a NotFound error
func NotFound(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidOperation builds a business-rule violation error
func InvalidOperation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidOperation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a malformed-request error
func Validation(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: err.Error(), Err: err}
}

// KindOf reports the Kind of err, or "" if it is not classified
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidOperation):
		return KindInvalidOperation
	}
	return ""
}

// Message returns the client-facing message of a classified error
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsInvalidOperation(err error) bool { return errors.Is(err, ErrInvalidOperation) }
func IsValidation(err error) bool       { return errors.Is(err, ErrValidation) }

// Common constructors used across services
func OrderNotFound(op string, id int64) *Error {
	return NotFound(op, "order %d not found", id)
}

func OrderItemNotFound(op string, id int64) *Error {
	return NotFound(op, "order item %d not found", id)
}

func MenuItemNotFound(op string, id int64) *Error {
	return NotFound(op, "menu item %d not found", id)
}

func TableNotFound(op, number string) *Error {
	return NotFound(op, "table %s not found", number)
}

func OrderAlreadyPaid(op string, id int64) *Error {
	return InvalidOperation(op, "order %d is already paid", id)
}
