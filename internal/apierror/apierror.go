// Package apierror classifies failures into the categories the API reports.
package apierror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind is an error category with a fixed HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
)

// Status maps the kind onto its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to clients; Err is
// the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Validation reports a malformed request. Details lists one message per field.
func Validation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// Auth reports a missing or rejected credential.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Forbidden reports an authenticated caller acting on something it does not own.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports an absent record.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a write that collides with existing state.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// RateLimited reports a caller over its request budget.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Internal wraps an unexpected failure. The cause never reaches the client;
// it is annotated with the call stack unless it already carries one.
func Internal(message string, err error) *Error {
	var st stackTracer
	if err != nil && !errors.As(err, &st) {
		err = errors.WithStack(err)
	}
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// Stack formats the call stack recorded on the cause, or "" when none was.
func (e *Error) Stack() string {
	var st stackTracer
	if e == nil || e.Err == nil || !errors.As(e.Err, &st) {
		return ""
	}
	return fmt.Sprintf("%+v", st.StackTrace())
}

// Wrap attaches a cause to a classified error.
func (e *Error) Wrap(err error) *Error {
	out := *e
	out.Err = err
	return &out
}

// From returns the classified error in err's chain, or an internal error
// wrapping err when there is none.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error", err)
}
