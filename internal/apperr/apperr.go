package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeProductNotFound   Code = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound     Code = "ORDER_NOT_FOUND"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeUnauthorized      Code = "UNAUTHORIZED"
)

// Error is the error type surfaced to callers of the core. Two errors are
// equal under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrProductNotFound   = &Error{Code: CodeProductNotFound, Message: "product not found"}
	ErrOrderNotFound     = &Error{Code: CodeOrderNotFound, Message: "order not found"}
	ErrInsufficientStock = &Error{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrIllegalTransition = &Error{Code: CodeIllegalTransition, Message: "illegal transition"}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
)

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

func ProductNotFound(id string) *Error {
	return New(CodeProductNotFound, "product not found: %s", id)
}

func OrderNotFound(id string) *Error {
	return New(CodeOrderNotFound, "order not found: %s", id)
}

func IllegalTransition(format string, args ...any) *Error {
	return New(CodeIllegalTransition, format, args...)
}

// WithDetails returns a copy of e carrying d as structured details.
func (e *Error) WithDetails(d any) *Error {
	c := *e
	c.Details = d
	return &c
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
