// Package apperrors defines the error kinds surfaced by the handlers and
// their HTTP status mapping.
package apperrors

import (
	"errors"
	"net/http"
)

// MsgInternal is the body message of every 500.
const MsgInternal = "Internal server error"

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindQuota
	KindState
	KindStock
	KindNotFound
	KindDownstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindQuota:
		return "quota"
	case KindState:
		return "state"
	case KindStock:
		return "stock"
	case KindNotFound:
		return "not_found"
	case KindDownstream:
		return "downstream"
	default:
		return "internal"
	}
}

// HTTPStatus is the response status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindQuota, KindState, KindStock:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind, a message safe to return to callers, and the
// underlying cause, which is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func Validation(msg string) *Error              { return newErr(KindValidation, msg, nil) }
func Quota(msg string) *Error                   { return newErr(KindQuota, msg, nil) }
func State(msg string) *Error                   { return newErr(KindState, msg, nil) }
func Stock(msg string, cause error) *Error      { return newErr(KindStock, msg, cause) }
func NotFound(msg string) *Error                { return newErr(KindNotFound, msg, nil) }
func Downstream(msg string, cause error) *Error { return newErr(KindDownstream, msg, cause) }
func Internal(msg string, cause error) *Error   { return newErr(KindInternal, msg, cause) }

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// PublicMessage is the text returned to callers. Internal, downstream and
// unclassified errors never leak their text.
func PublicMessage(err error) string {
	var ae *Error
	if !errors.As(err, &ae) || ae.Message == "" {
		return MsgInternal
	}
	switch ae.Kind {
	case KindInternal, KindDownstream:
		return MsgInternal
	}
	return ae.Message
}
