package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benagdipa/fwpm-sub001/internal/platform/httpx"
)

// ErrSessionExpired marks authentication failures returned by the backend.
// By the time a caller sees it the persisted session has already been cleared.
var ErrSessionExpired = errors.New("apiclient: session expired")

// HTTPError describes a non-2xx response from the backend.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: status %d", e.Method, e.Path, e.Status)
}

// Unwrap exposes the httpx sentinel for the status code.
func (e *HTTPError) Unwrap() error {
	return httpx.FromStatus(e.Status)
}

// Is matches ErrSessionExpired for authentication failures.
func (e *HTTPError) Is(target error) bool {
	return target == ErrSessionExpired && e.Status == http.StatusUnauthorized
}

// StatusCode extracts the backend status from err, or 0 when err did not come from a response.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
