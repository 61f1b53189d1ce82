// Package apperr holds the typed errors that services return and handlers turn
// into the `{error:{code,message,details}}` envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Code string

const (
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeForbidden              Code = "FORBIDDEN"
	CodeNotFound               Code = "NOT_FOUND"
	CodeBadRequest             Code = "BAD_REQUEST"
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeDuplicateSlug          Code = "DUPLICATE_SLUG"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeConcurrentDelete       Code = "CONCURRENT_DELETE"
	CodeCategoryNotFound       Code = "CATEGORY_NOT_FOUND"
	CodeInvalidReference       Code = "INVALID_REFERENCE"
	CodeContentTooLong         Code = "CONTENT_TOO_LONG"
	CodeDatabase               Code = "DATABASE_ERROR"
	CodeInternal               Code = "INTERNAL_ERROR"
)

type Error struct {
	Code    Code
	Message string
	Status  int
	Details any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails returns a copy of e carrying details for the envelope.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func BadRequest(message string) *Error {
	return New(CodeBadRequest, http.StatusBadRequest, message)
}

func Validation(message string, details any) *Error {
	return New(CodeValidation, http.StatusBadRequest, message).WithDetails(details)
}

func Internal(message string) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// FromDB translates a persistence error. The cause is logged under where
// before translation; an *Error already in the chain passes through untouched.
func FromDB(err error, where string, log logrus.FieldLogger) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if log != nil {
		log.WithError(err).Error(where)
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return New(CodeDuplicateSlug, http.StatusBadRequest, "A record with the same unique value already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return New(CodeInvalidReference, http.StatusBadRequest, "Invalid reference")
	default:
		return New(CodeDatabase, http.StatusInternalServerError, "Database error occurred")
	}
}

// Wrap logs err under where and returns the generic internal error with message,
// unless err already is an *Error.
func Wrap(err error, where, message string, log logrus.FieldLogger) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if log != nil {
		log.WithError(err).Error(where)
	}
	return Internal(message)
}
