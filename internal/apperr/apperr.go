package apperr

import (
	"fmt"
	"net/http"
)

type Code string

const (
	Validation          Code = "validation_error"
	Auth                Code = "auth_error"
	NotFound            Code = "not_found"
	Gateway             Code = "gateway_error"
	IdentifierExhausted Code = "identifier_exhausted"
	Internal            Code = "internal_error"
)

// Error is the application-level error rendered at the HTTP boundary. The
// message is what the client sees; gateway errors carry the upstream message
// through unmodified.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) HTTPStatus() int {
	switch e.Code {
	case Validation, Auth, Gateway:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
