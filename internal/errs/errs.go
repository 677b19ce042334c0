// Package errs carries the error codes shared by the browser engine, the API
// client and the fixture review app, and their mapping to HTTP statuses in
// both directions.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code string

const (
	InvalidArgument    Code = "invalid_argument"
	NotFound           Code = "not_found"
	FailedPrecondition Code = "failed_precondition"
	PermissionDenied   Code = "permission_denied"
	Unavailable        Code = "unavailable"
	// Timeout marks a wait that ran out: a UI element that never reached the
	// awaited state, or a request or replay deadline.
	Timeout  Code = "timeout"
	Internal Code = "internal"
)

var statusOf = map[Code]int{
	InvalidArgument:    http.StatusBadRequest,
	PermissionDenied:   http.StatusUnauthorized,
	NotFound:           http.StatusNotFound,
	FailedPrecondition: http.StatusConflict,
	Unavailable:        http.StatusServiceUnavailable,
	Timeout:            http.StatusGatewayTimeout,
	Internal:           http.StatusInternalServerError,
}

// Error is a coded error. Message is safe to show a client; Err is not.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

func as(err error) (*Error, bool) {
	var coded *Error
	if err == nil || !errors.As(err, &coded) {
		return nil, false
	}
	return coded, true
}

// CodeOf returns the code of the outermost coded error in err's chain.
// Untyped and empty codes read as Internal.
func CodeOf(err error) Code {
	if coded, ok := as(err); ok && coded.Code != "" {
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the client-facing message. Untyped errors read as
// "internal error" so raw causes stay in the logs.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	if coded, ok := as(err); ok && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// HTTPStatus is the status a server answers with for code.
func HTTPStatus(code Code) int {
	if s, ok := statusOf[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FromHTTPStatus classifies a non-2xx answer a client received.
func FromHTTPStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return InvalidArgument
	case http.StatusUnauthorized, http.StatusForbidden:
		return PermissionDenied
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return FailedPrecondition
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return Timeout
	case http.StatusTooManyRequests:
		return Unavailable
	}
	if status >= 500 {
		return Unavailable
	}
	return Internal
}

// Retryable reports whether the same call may succeed later unchanged.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case Unavailable, Timeout:
		return true
	}
	return false
}
