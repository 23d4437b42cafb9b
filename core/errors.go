package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			msgs := make([]string, 0, len(err.Fields))
			for _, f := range err.Fields {
				msgs = append(msgs, f.Field+": "+f.Error)
			}
			return strings.Join(msgs, "; ")
		}
		return ""
	}
	return err.Err.Error()
}

// IsValidationError reports whether the cause of err is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// ErrorKind classifies domain errors so that transports can map them without knowing every sentinel.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindAlreadyExists
	KindAlreadyMember
	KindUnauthorized
	KindForbidden
	KindInvalidState
	KindInvalidCredentials
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindAlreadyMember:
		return "already member"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid state"
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindUpstream:
		return "upstream failure"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a classified domain error. Sentinels are declared as *Error values and compared through errors.Cause.
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string { return e.Message }

var (
	ErrUnauthorized = NewError(KindUnauthorized, "user not authenticated")
	ErrForbidden    = NewError(KindForbidden, "permission denied")
)

// Upstream wraps a collaborator failure (storage, email, broker) so that it is reported as such.
func Upstream(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(&upstreamError{err: err}, msg)
}

type upstreamError struct {
	err error
}

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

// KindOf returns the ErrorKind of err's cause, or 0 when it is not classified.
func KindOf(err error) ErrorKind {
	switch cause := errors.Cause(err).(type) {
	case *Error:
		return cause.Kind
	case *upstreamError:
		return KindUpstream
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
