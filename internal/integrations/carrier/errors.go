package carrier

import (
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuthFailure Kind = "auth_failure"
	KindRateLimited Kind = "rate_limited"
	KindUnsupported Kind = "unsupported"
	KindTransport   Kind = "transport"
)

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrAuthFailure = &Error{Kind: KindAuthFailure}
	ErrRateLimited = &Error{Kind: KindRateLimited}
	ErrUnsupported = &Error{Kind: KindUnsupported}
	ErrTransport   = &Error{Kind: KindTransport}
)

type Error struct {
	Kind    Kind
	Carrier string
	Err     error
}

func NewError(carrierCode string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Carrier: carrierCode, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Carrier != "" {
		msg = e.Carrier + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// FromHTTPStatus classifies a non-2xx carrier response.
func FromHTTPStatus(carrierCode string, status int) *Error {
	cause := fmt.Errorf("http %d", status)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(carrierCode, KindAuthFailure, cause)
	case http.StatusTooManyRequests:
		return NewError(carrierCode, KindRateLimited, cause)
	default:
		return NewError(carrierCode, KindTransport, cause)
	}
}
