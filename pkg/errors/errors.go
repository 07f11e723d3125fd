package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidSession    Code = "INVALID_SESSION"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMITED"
	CodeRequestFailed     Code = "REQUEST_FAILED"
	CodeConfigUnavailable Code = "CONFIG_UNAVAILABLE"
	CodePartialFailure    Code = "PARTIAL_FAILURE"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeInvalidSession: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "invalid session",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeIdempotency: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "idempotency key reused",
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		Retryable:     true,
		PublicMessage: "rate limit exceeded",
	},
	CodeRequestFailed: {
		HTTPStatus:     http.StatusBadGateway,
		PublicMessage:  "backend request failed",
		DetailsAllowed: true,
	},
	CodeConfigUnavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "configuration unavailable",
	},
	CodePartialFailure: {
		HTTPStatus:     http.StatusInternalServerError,
		PublicMessage:  "operation partially applied",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// ErrInvalidSession is returned whenever the bearer token is missing or expired.
// Callers compare with IsInvalidSession and send the user back to sign-in.
var ErrInvalidSession = New(CodeInvalidSession, "invalid session")

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches typed errors by code so sentinels like ErrInvalidSession work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.code == t.code
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether any typed error in the chain carries code.
func HasCode(err error, code Code) bool {
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		if typed, ok := e.(*Error); ok && typed.code == code {
			return true
		}
	}
	return false
}

// IsInvalidSession reports whether err means the user must sign in again.
func IsInvalidSession(err error) bool {
	return HasCode(err, CodeInvalidSession)
}

// RequestFailure is attached as details to REQUEST_FAILED errors.
type RequestFailure struct {
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status"`
	Body     string `json:"body"`
}

// NewRequestFailure builds the error surfaced for non-2xx backend responses.
func NewRequestFailure(endpoint string, status int, body string) *Error {
	return New(CodeRequestFailed, fmt.Sprintf("request to %s failed with status %d: %s", endpoint, status, body)).
		WithDetails(RequestFailure{Endpoint: endpoint, Status: status, Body: body})
}

// RequestFailureFrom extracts the HTTP status and body of a failed backend call.
func RequestFailureFrom(err error) (RequestFailure, bool) {
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		typed, ok := e.(*Error)
		if !ok || typed.code != CodeRequestFailed {
			continue
		}
		if failure, ok := typed.details.(RequestFailure); ok {
			return failure, true
		}
	}
	return RequestFailure{}, false
}
