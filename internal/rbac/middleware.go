package rbac

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

// Middleware wires guards into chi route groups.
type Middleware struct {
	Admin     Guard
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	Sessions  *shared.SessionManager
	Logger    *slog.Logger
	Now       func() time.Time
}

// RequireConsoleAdmin protects user and role management pages.
func (m Middleware) RequireConsoleAdmin(next http.Handler) http.Handler {
	return m.require(m.Admin, next)
}

// RequireSignedIn protects pages any signed-in user may open.
func (m Middleware) RequireSignedIn(next http.Handler) http.Handler {
	return m.require(SignedInGuard(), next)
}

func (m Middleware) require(g Guard, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		now := time.Now()
		if m.Now != nil {
			now = m.Now()
		}
		v := ViewOf(sess, now)
		switch g.Resolve(v) {
		case StateResolving:
			w.Header().Set("Retry-After", "1")
			m.render(w, r, "pages/loading.html", "Loading", http.StatusServiceUnavailable)
		case StateRedirecting:
			m.dropStaleIdentity(r, sess)
			shared.RedirectToLogin(w, r)
		case StateDenied:
			if m.Logger != nil {
				m.Logger.Info("console access denied", slog.String("user", v.Username), slog.String("role", v.Role), slog.String("path", r.URL.Path))
			}
			m.render(w, r, "pages/denied.html", "Access denied", http.StatusForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// dropStaleIdentity tears down a session whose identity outlived its token.
func (m Middleware) dropStaleIdentity(r *http.Request, sess *shared.Session) {
	if m.Sessions == nil || sess == nil {
		return
	}
	if _, ok := sess.Identity(); !ok {
		return
	}
	if _, err := m.Sessions.Teardown(r.Context(), sess, shared.ReasonExpired); err != nil && m.Logger != nil {
		m.Logger.Warn("teardown stale session", slog.Any("error", err))
	}
}

func (m Middleware) render(w http.ResponseWriter, r *http.Request, name, title string, status int) {
	if m.Templates == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	data := view.NewTemplateData(r, m.CSRF, title, nil)
	if err := m.Templates.RenderStatus(w, status, name, data); err != nil {
		if m.Logger != nil {
			m.Logger.Error("render guard page", slog.Any("error", err))
		}
		http.Error(w, http.StatusText(status), status)
	}
}
