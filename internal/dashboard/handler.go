package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

// Handler serves the dashboard landing page.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	upstream  shared.Upstream
	templates *view.Engine
	csrf      *shared.CSRFManager
	userCount func(r *http.Request) (int, error)
	roleCount func() int
}

// NewHandler builds Handler instance. userCount and roleCount may be nil.
func NewHandler(logger *slog.Logger, service *Service, upstream shared.Upstream, templates *view.Engine, csrf *shared.CSRFManager, userCount func(r *http.Request) (int, error), roleCount func() int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, upstream: upstream, templates: templates, csrf: csrf, userCount: userCount, roleCount: roleCount}
}

// ServeHTTP renders the summary cards.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	src := Sources{Metrics: h.upstream.For(r).Metrics()}
	viewData := view.NewTemplateData(r, h.csrf, "Dashboard", nil)
	if viewData.User != nil && (viewData.User.Role == shared.RoleAdmin || viewData.User.Role == shared.RoleSuperAdmin) {
		src.RoleCount = h.roleCount
		if h.userCount != nil {
			src.UserCount = func(context.Context) (int, error) { return h.userCount(r) }
		}
	}
	cards, err := h.service.Summary(r.Context(), src)
	if err != nil {
		if shared.RedirectIfExpired(w, r, err) {
			return
		}
		h.logger.Error("dashboard summary", slog.Any("error", err))
	}
	viewData.Data = map[string]any{"Cards": cards}
	if err := h.templates.Render(w, "pages/home.html", viewData); err != nil {
		h.logger.Error("render home", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Sites lists the radio sites the backend knows about.
func (h *Handler) Sites(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	sites, err := h.upstream.For(r).Metrics().FetchSites(r.Context())
	if err != nil {
		if shared.RedirectIfExpired(w, r, err) {
			return
		}
		h.logger.Error("fetch sites", slog.Any("error", err))
		data["Error"] = NotWiredText
	}
	data["Sites"] = sites
	if err := h.templates.Render(w, "pages/sites.html", view.NewTemplateData(r, h.csrf, "Sites", data)); err != nil {
		h.logger.Error("render sites", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
