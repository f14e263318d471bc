package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

// UserCounter returns how many users hold each role name for the request's
// session. Implementations call the backend, so failures are tolerated.
type UserCounter func(r *http.Request) (map[string]int, error)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	manager   *Manager
	templates *view.Engine
	csrf      *shared.CSRFManager
	audit     *shared.AuditLogger
	counter   UserCounter
}

// NewHandler builds Handler instance. counter and audit may be nil.
func NewHandler(logger *slog.Logger, manager *Manager, templates *view.Engine, csrf *shared.CSRFManager, audit *shared.AuditLogger, counter UserCounter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, manager: manager, templates: templates, csrf: csrf, audit: audit, counter: counter}
}

// MountRoutes registers role routes. Callers wrap the router in the admin guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.createRole)
	r.Get("/{id}/edit", h.showEditForm)
	r.Post("/{id}", h.updateRole)
	r.Post("/{id}/delete", h.deleteRole)
}

type listView struct {
	Roles  []Role
	Groups []Group
}

type groupView struct {
	Group
	State CategoryState
}

type formView struct {
	Role   *Role
	Draft  Draft
	Groups []groupView
	Error  string
	Action string
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	if h.counter != nil {
		counts, err := h.counter(r)
		if err != nil {
			h.logger.Warn("recount role users", slog.Any("error", err))
		} else {
			h.manager.RecountUsers(counts)
		}
	}
	h.render(w, r, "pages/roles/list.html", "Roles", listView{Roles: h.manager.List(), Groups: h.manager.Catalog().Groups()}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, nil, Draft{Permissions: PermissionSet{}}, "", http.StatusOK)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	role, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, &role, DraftOf(role), "", http.StatusOK)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	draft, op, err := h.parseDraft(r)
	if err != nil {
		h.renderForm(w, r, nil, Draft{}, "Invalid form submission.", http.StatusBadRequest)
		return
	}
	if op != "save" {
		h.renderForm(w, r, nil, draft, "", http.StatusOK)
		return
	}
	role, err := h.manager.CreateRole(draft)
	if err != nil {
		h.renderForm(w, r, nil, draft, validationMessage(err), http.StatusUnprocessableEntity)
		return
	}
	h.record(r, "role.create", role)
	h.redirectWithFlash(w, r, "/roles", "success", "Role "+role.DisplayName+" created")
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.lookup(w, r)
	if !ok {
		return
	}
	draft, op, err := h.parseDraft(r)
	if err != nil {
		h.renderForm(w, r, &role, DraftOf(role), "Invalid form submission.", http.StatusBadRequest)
		return
	}
	if op != "save" {
		h.renderForm(w, r, &role, draft, "", http.StatusOK)
		return
	}
	updated, err := h.manager.UpdateRole(role.ID, draft)
	if err != nil {
		h.renderForm(w, r, &role, draft, validationMessage(err), http.StatusUnprocessableEntity)
		return
	}
	h.record(r, "role.update", updated)
	h.redirectWithFlash(w, r, "/roles", "success", "Role "+updated.DisplayName+" updated")
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.manager.DeleteRole(role.ID); err != nil {
		h.redirectWithFlash(w, r, "/roles", "error", validationMessage(err))
		return
	}
	h.record(r, "role.delete", role)
	h.redirectWithFlash(w, r, "/roles", "success", "Role "+role.DisplayName+" deleted")
}

// parseDraft reads the role form and applies the draft action named by op.
// Draft actions re-render the form without saving.
func (h *Handler) parseDraft(r *http.Request) (Draft, string, error) {
	if err := r.ParseForm(); err != nil {
		return Draft{}, "", err
	}
	draft := Draft{
		Name:        r.PostFormValue("name"),
		DisplayName: r.PostFormValue("display_name"),
		Description: r.PostFormValue("description"),
		Permissions: NewPermissionSet(r.PostForm["permission"]...),
	}
	op := r.PostFormValue("op")
	verb, arg, _ := strings.Cut(op, ":")
	switch verb {
	case "toggle":
		draft.TogglePermission(arg)
	case "select":
		draft.SetCategoryPermissions(h.manager.Catalog(), arg, true)
	case "clear":
		draft.SetCategoryPermissions(h.manager.Catalog(), arg, false)
	default:
		op = "save"
	}
	return draft, op, nil
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (Role, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err == nil {
		role, getErr := h.manager.Get(id)
		if getErr == nil {
			return role, true
		}
	}
	h.redirectWithFlash(w, r, "/roles", "error", "Role not found")
	return Role{}, false
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, role *Role, draft Draft, message string, status int) {
	catalog := h.manager.Catalog()
	groups := make([]groupView, 0, len(catalog.Groups()))
	for _, g := range catalog.Groups() {
		groups = append(groups, groupView{Group: g, State: CategoryStateOf(catalog, g.Category, draft)})
	}
	fv := formView{Role: role, Draft: draft, Groups: groups, Error: message, Action: "/roles"}
	title := "New role"
	if role != nil {
		fv.Action = "/roles/" + strconv.FormatInt(role.ID, 10)
		title = "Edit " + role.DisplayName
	}
	h.render(w, r, "pages/roles/form.html", title, fv, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	viewData := view.NewTemplateData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) record(r *http.Request, action string, role Role) {
	err := h.audit.Record(context.WithoutCancel(r.Context()), shared.AuditLog{
		Actor:    shared.Actor(shared.SessionFromContext(r.Context())),
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(role.ID, 10),
		Meta:     map[string]any{"name": role.Name, "permissions": role.Permissions.IDs()},
	})
	if err != nil {
		h.logger.Warn("audit role change", slog.Any("error", err))
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "Name and display name are required."
	case errors.Is(err, ErrProtectedRole):
		return "The admin and user roles are protected and cannot be deleted or renamed."
	case errors.Is(err, ErrDuplicateName):
		return "Another role already uses that name."
	case errors.Is(err, ErrNotFound):
		return "Role not found"
	default:
		return shared.GenericFailureMessage
	}
}
