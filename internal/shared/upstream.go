package shared

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
)

// Upstream hands out API clients bound to the calling request's session.
type Upstream struct {
	Client   *apiclient.Client
	Sessions *SessionManager
	Logger   *slog.Logger
}

// For returns a client carrying the request session's token. An
// authentication failure tears that session down.
func (u Upstream) For(r *http.Request) *apiclient.Client {
	sess := SessionFromContext(r.Context())
	if sess == nil || u.Sessions == nil {
		return u.Client
	}
	path := r.URL.Path
	return u.Client.WithStore(u.Sessions.TokenStore(sess)).WithExpiryHook(func(ctx context.Context) {
		if u.Logger != nil {
			u.Logger.Info("backend rejected session", slog.String("path", path))
		}
	})
}

// RedirectIfExpired sends the browser to the login page when err is an
// authentication failure from the backend. It reports whether the caller
// should stop handling the request.
func RedirectIfExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, apiclient.ErrSessionExpired) {
		return false
	}
	if !RedirectToLogin(w, r) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return true
}
