package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/benagdipa/fwpm-sub001/internal/auth"
	"github.com/benagdipa/fwpm-sub001/internal/dashboard"
	"github.com/benagdipa/fwpm-sub001/internal/observability"
	"github.com/benagdipa/fwpm-sub001/internal/platform/httpx"
	"github.com/benagdipa/fwpm-sub001/internal/rbac"
	"github.com/benagdipa/fwpm-sub001/internal/roles"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/users"
	"github.com/benagdipa/fwpm-sub001/jobs"
	"github.com/benagdipa/fwpm-sub001/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	RolesHandler     *roles.Handler
	UsersHandler     *users.Handler
	JobHandler       *jobs.Handler
	RBACMiddleware   rbac.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// served outside the session stack: no cookie, CSRF or rate limit
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		guard := params.RBACMiddleware
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r, guard.RequireSignedIn)
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireSignedIn)
			r.Method(http.MethodGet, "/", params.DashboardHandler)
			r.Get("/sites", params.DashboardHandler.Sites)
		})
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireConsoleAdmin)
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.RolesHandler != nil {
				r.Route("/roles", params.RolesHandler.MountRoutes)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
