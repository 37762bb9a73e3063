// Package apperr defines the error taxonomy shared by services and the HTTP edge.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP edge
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindUpstream
)

// FieldError describes one failed request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind to an HTTP status code
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string, fields ...FieldError) *Error {
	e := newError(KindValidation, message)
	e.Fields = fields
	return e
}

func Unauthorized(message string) *Error { return newError(KindUnauthorized, message) }

func Forbidden(message string) *Error { return newError(KindForbidden, message) }

func NotFound(message string) *Error { return newError(KindNotFound, message) }

func Conflict(message string) *Error { return newError(KindConflict, message) }

func RateLimited(message string) *Error { return newError(KindRateLimited, message) }

// Upstream wraps a failure of the market data provider
func Upstream(message string, err error) *Error {
	e := newError(KindUpstream, message)
	e.Err = err
	return e
}

// Internal wraps an unexpected failure; the message is safe to show clients
func Internal(message string, err error) *Error {
	e := newError(KindInternal, message)
	e.Err = err
	return e
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when unclassified
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
