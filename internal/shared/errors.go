package shared

import (
	"errors"

	"github.com/benagdipa/fwpm-sub001/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// GenericFailureMessage is shown for any backend failure; details only go to the log.
const GenericFailureMessage = "Something went wrong talking to the server. Please try again."

// UserSafeMessage returns a message that can be shown in a flash without leaking backend detail.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, httpx.ErrForbidden):
		return "The server refused this action for your account."
	case errors.Is(err, httpx.ErrNotFound):
		return "The record no longer exists."
	case errors.Is(err, httpx.ErrDuplicate):
		return "A record with the same details already exists."
	case errors.Is(err, httpx.ErrValidation):
		return "The server rejected the submitted values."
	default:
		return GenericFailureMessage
	}
}
