package services

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidSpec ErrorCode = "INVALID_SPEC"
	CodeNotFound    ErrorCode = "NOT_FOUND"
	CodeForbidden   ErrorCode = "FORBIDDEN"
	CodeConflict    ErrorCode = "CONFLICT"
	CodeDatabase    ErrorCode = "DATABASE_ERROR"
	CodeExternal    ErrorCode = "EXTERNAL_ERROR"
)

// AppError carries a machine-readable code for the command layer.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Sentinels for errors.Is; they match any AppError with the same code.
var (
	ErrInvalidSpec = &AppError{Code: CodeInvalidSpec}
	ErrNotFound    = &AppError{Code: CodeNotFound}
	ErrForbidden   = &AppError{Code: CodeForbidden}
	ErrConflict    = &AppError{Code: CodeConflict}
	ErrDatabase    = &AppError{Code: CodeDatabase}
)

func (e *AppError) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func invalidSpec(format string, args ...interface{}) error {
	return NewAppError(CodeInvalidSpec, fmt.Sprintf(format, args...), nil)
}

func notFound(format string, args ...interface{}) error {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), nil)
}

func forbidden(format string, args ...interface{}) error {
	return NewAppError(CodeForbidden, fmt.Sprintf(format, args...), nil)
}

func conflict(format string, args ...interface{}) error {
	return NewAppError(CodeConflict, fmt.Sprintf(format, args...), nil)
}

// dbError wraps persistence failures; AppErrors pass through untouched.
func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return NewAppError(CodeDatabase, op, err)
}
