package credits

import (
	"errors"
	"net/http"
)

// Kind classifies a workflow failure.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindUserNotFound
	KindInvalidRequest
	KindInsufficientAuditors
	KindPersistence
	KindCreditNotFound
	KindNotSold
	KindForbidden
	KindAlreadyExpired
	KindInvalidCredentials
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindUserNotFound:
		return "user_not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindInsufficientAuditors:
		return "insufficient_auditors"
	case KindPersistence:
		return "persistence_error"
	case KindCreditNotFound:
		return "credit_not_found"
	case KindNotSold:
		return "not_sold"
	case KindForbidden:
		return "forbidden"
	case KindAlreadyExpired:
		return "already_expired"
	case KindInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

// Status is the HTTP status a failure of this kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized, KindForbidden:
		return http.StatusForbidden
	case KindUserNotFound, KindCreditNotFound:
		return http.StatusNotFound
	case KindInvalidRequest, KindNotSold, KindAlreadyExpired:
		return http.StatusBadRequest
	case KindInsufficientAuditors:
		return http.StatusServiceUnavailable
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified workflow failure. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the Kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
