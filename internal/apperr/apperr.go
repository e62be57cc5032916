// Package apperr carries the error taxonomy shared by services and the HTTP
// error middleware.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindPayloadTooLarge
	KindUnsupportedMediaType
	KindTooManyRequests
	KindDatabase
)

// Error is the typed error every layer above storage returns.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// StatusCode maps the kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindDatabase:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy carrying details for the non-production envelope.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy of e with err as the cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(msg string) *Error   { return newErr(KindValidation, "VALIDATION_ERROR", msg) }
func Unauthorized(msg string) *Error { return newErr(KindUnauthorized, "UNAUTHORIZED", msg) }
func Forbidden(msg string) *Error    { return newErr(KindForbidden, "FORBIDDEN", msg) }
func NotFound(msg string) *Error     { return newErr(KindNotFound, "NOT_FOUND", msg) }
func Conflict(msg string) *Error     { return newErr(KindConflict, "CONFLICT", msg) }
func PayloadTooLarge(msg string) *Error {
	return newErr(KindPayloadTooLarge, "PAYLOAD_TOO_LARGE", msg)
}
func UnsupportedMediaType(msg string) *Error {
	return newErr(KindUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", msg)
}
func TooManyRequests(msg string) *Error {
	return newErr(KindTooManyRequests, "RATE_LIMIT_EXCEEDED", msg)
}
func Internal(msg string, err error) *Error {
	e := newErr(KindInternal, "INTERNAL_ERROR", msg)
	e.Err = err
	return e
}

// Coded builds an error with a domain-specific code.
func Coded(kind Kind, code, msg string) *Error { return newErr(kind, code, msg) }

// FromStorage translates gorm errors; what is already an *Error passes through.
func FromStorage(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: what + " not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Code: "DUPLICATE_ENTRY", Message: "a record with this information already exists", Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &Error{Kind: KindConflict, Code: "CONFLICT", Message: what + " is still referenced", Err: err}
	default:
		return &Error{Kind: KindDatabase, Code: "DATABASE_ERROR", Message: "database operation failed", Err: err}
	}
}

// As extracts an *Error, converting anything else into an internal error.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal server error", err)
}
