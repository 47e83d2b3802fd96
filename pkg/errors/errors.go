package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes shared by the auth packages. Each one belongs to exactly one
// class of the taxonomy: input, not found, expired, conflict, unauthorized
// or upstream.
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"
	ErrCodeTokenInvalid ErrorCode = "TOKEN_INVALID"

	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCode2FAExpired   ErrorCode = "TWO_FA_EXPIRED"

	ErrCodeEmailInUse ErrorCode = "EMAIL_IN_USE"

	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCode2FAInvalid         ErrorCode = "TWO_FA_INVALID"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeUpstream ErrorCode = "UPSTREAM"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// GenericMessage is what callers see for any upstream failure.
const GenericMessage = "Something went wrong. Please try again later."

// Error represents a structured error with code and message
type Error struct {
	Code    ErrorCode // Unique error code
	Message string    // Human-readable error message
	Err     error     // Wrapped underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Upstream wraps a store or transport failure. The message shown to callers
// is always GenericMessage; err is kept for server-side logging.
func Upstream(err error) *Error {
	return Wrap(err, ErrCodeUpstream, GenericMessage)
}

// PublicMessage returns the message that may be shown to a caller. Upstream
// and unstructured errors never leak their detail.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != ErrCodeUpstream && e.Code != ErrCodeInternal {
		return e.Message
	}
	return GenericMessage
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest

	case ErrCodeUserNotFound, ErrCodeTokenInvalid:
		return http.StatusNotFound

	case ErrCodeTokenExpired, ErrCode2FAExpired:
		return http.StatusGone

	case ErrCodeEmailInUse:
		return http.StatusConflict

	case ErrCodeUnauthorized, ErrCodeInvalidCredentials, ErrCode2FAInvalid:
		return http.StatusUnauthorized

	case ErrCodeForbidden:
		return http.StatusForbidden

	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	case ErrCodeUpstream:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
