package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/internal/auth"
	"github.com/benagdipa/fwpm-sub001/internal/dashboard"
	"github.com/benagdipa/fwpm-sub001/internal/rbac"
	"github.com/benagdipa/fwpm-sub001/internal/roles"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/users"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "console_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	api := apiclient.New(apiclient.Config{BaseURL: "http://127.0.0.1:0/api", Timeout: time.Second})
	upstream := shared.Upstream{Client: api, Sessions: sessions, Logger: logger}
	manager := roles.NewManager(roles.NewCatalog(roles.DefaultPermissions()))

	usersHandler := users.NewHandler(users.HandlerParams{Logger: logger, Upstream: upstream, Templates: templates, CSRF: csrf})
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager:   sessions,
		CSRFManager:      csrf,
		AuthHandler:      auth.NewHandler(logger, auth.NewService(api.Auth()), upstream, templates, sessions, csrf),
		DashboardHandler: dashboard.NewHandler(logger, dashboard.NewService(logger), upstream, templates, csrf, nil, nil),
		RolesHandler:     roles.NewHandler(logger, manager, templates, csrf, nil, usersHandler.CountUsersByRole),
		UsersHandler:     usersHandler,
		RBACMiddleware: rbac.Middleware{
			Admin:     rbac.AdminGuard("sysadmin"),
			Templates: templates,
			CSRF:      csrf,
			Sessions:  sessions,
			Logger:    logger,
		},
	})
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
}

func TestRouterServesStaticWithCacheHeader(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func TestRouterGuardsProtectedPages(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/", "/sites", "/users", "/roles", "/auth/profile"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Contains(t, rec.Header().Get("Location"), "/auth/login?next=")
		})
	}
}

func TestRouterLoginPageIsPublic(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="csrf_token"`)
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestRouterRejectsPostWithoutCSRFToken(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=a%40b.io&password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterSetsSecurityHeaders(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}
