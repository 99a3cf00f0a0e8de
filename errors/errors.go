package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyBody        = fmt.Errorf("message body is empty")
	ErrSelfMessage      = fmt.Errorf("sender and recipient are the same user")
	ErrMissingRecipient = fmt.Errorf("recipient is missing")
	ErrSessionClosed    = fmt.Errorf("session is closed")
	ErrNotBound         = fmt.Errorf("session has no bound identity")
	ErrNotConnected     = fmt.Errorf("client is not connected")
	ErrOffline          = fmt.Errorf("reconnect attempts exhausted")
	ErrInvalidIdentity  = fmt.Errorf("identity does not match token")
	ErrInvalidToken     = fmt.Errorf("invalid token")
	ErrEmptyBlocklist   = fmt.Errorf("no blocked terms have been found")
)

// MapToHTTPStatus converts domain errors into HTTP status codes at the API boundary.
// Unknown errors are deliberately reported as 500 without leaking details.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyBody),
		errors.Is(err, ErrSelfMessage),
		errors.Is(err, ErrMissingRecipient):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidIdentity):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
