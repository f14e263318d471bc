package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger      *slog.Logger
	upstream    shared.Upstream
	notifier    Notifier
	templates   *view.Engine
	csrf        *shared.CSRFManager
	audit       *shared.AuditLogger
	roleOptions func() []string
}

// HandlerParams groups Handler dependencies. Notifier, Audit and RoleOptions
// are optional.
type HandlerParams struct {
	Logger      *slog.Logger
	Upstream    shared.Upstream
	Notifier    Notifier
	Templates   *view.Engine
	CSRF        *shared.CSRFManager
	Audit       *shared.AuditLogger
	RoleOptions func() []string
}

// NewHandler builds Handler instance.
func NewHandler(p HandlerParams) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	roleOptions := p.RoleOptions
	if roleOptions == nil {
		roleOptions = shared.ConsoleRoles
	}
	return &Handler{
		logger:      logger,
		upstream:    p.Upstream,
		notifier:    p.Notifier,
		templates:   p.Templates,
		csrf:        p.CSRF,
		audit:       p.Audit,
		roleOptions: roleOptions,
	}
}

// MountRoutes registers user routes. Callers wrap the router in the admin guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.createUser)
	r.Get("/{id}/edit", h.showEditForm)
	r.Post("/{id}", h.updateUser)
	r.Post("/{id}/role", h.setRole)
	r.Post("/{id}/toggle", h.toggleActive)
	r.Post("/{id}/password", h.resetPassword)
	r.Post("/{id}/delete", h.deleteUser)
}

// CountUsersByRole loads the user list for the request's session and counts
// it per role.
func (h *Handler) CountUsersByRole(r *http.Request) (map[string]int, error) {
	m := h.mount(r)
	defer m.Unmount()
	list, err := m.ListUsers(r.Context())
	if err != nil {
		return nil, err
	}
	return CountByRole(list), nil
}

type listView struct {
	Query   string
	Tab     string
	Tabs    []Bucket
	Visible []User
	Total   int
	Error   string
}

type formView struct {
	Draft Draft
	Roles []string
	Error string
}

type editView struct {
	User  User
	Roles []string
}

func (h *Handler) mount(r *http.Request) *Manager {
	return NewManager(NewRepository(h.upstream.For(r).Users()), h.notifier, h.logger)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	m := h.mount(r)
	defer m.Unmount()

	lv := listView{Query: r.URL.Query().Get("q"), Tab: r.URL.Query().Get("tab")}
	status := http.StatusOK
	if _, err := m.ListUsers(r.Context()); err != nil {
		if shared.RedirectIfExpired(w, r, err) {
			return
		}
		h.logger.Error("list users failed", slog.Any("error", err))
		lv.Error = shared.UserSafeMessage(err)
		status = http.StatusBadGateway
	}
	all := m.Users()
	lv.Total = len(all)
	lv.Tabs = Buckets(Filter(all, lv.Query))
	lv.Visible = lv.Tabs[0].Users
	for _, b := range lv.Tabs {
		if b.Key == lv.Tab {
			lv.Visible = b.Users
		}
	}
	if lv.Tab == "" {
		lv.Tab = lv.Tabs[0].Key
	}
	h.render(w, r, "pages/users/list.html", "Users", lv, status)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", "New user", formView{Draft: Draft{Role: shared.RoleUser}, Roles: h.roleOptions()}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "pages/users/form.html", "New user", formView{Roles: h.roleOptions(), Error: "Invalid form submission."}, http.StatusBadRequest)
		return
	}
	d := Draft{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		FirstName:       r.PostFormValue("first_name"),
		LastName:        r.PostFormValue("last_name"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Role:            r.PostFormValue("role"),
		Department:      r.PostFormValue("department"),
	}
	m := h.mount(r)
	defer m.Unmount()

	created, err := m.CreateUser(r.Context(), d)
	var partial *PartialCreateError
	switch {
	case err == nil:
		h.record(r, "user.create", created.ID, map[string]any{"username": created.Username, "role": created.Role})
		h.redirectWithFlash(w, r, "/users", "success", "User "+created.Username+" created")
	case errors.Is(err, ErrPasswordMismatch), errors.Is(err, ErrValidation):
		d.Password, d.ConfirmPassword = "", ""
		h.render(w, r, "pages/users/form.html", "New user", formView{Draft: d, Roles: h.roleOptions(), Error: validationMessage(err)}, http.StatusUnprocessableEntity)
	case shared.RedirectIfExpired(w, r, err):
	case errors.As(err, &partial):
		h.logger.Error("user created without role", slog.Any("error", err))
		h.record(r, "user.create.partial", partial.User.ID, map[string]any{"username": partial.User.Username, "intended_role": d.Role})
		h.redirectWithFlash(w, r, "/users", "error", fmt.Sprintf("User %s was created but the role %q could not be assigned. Set the role from the user's page.", partial.User.Username, d.Role))
	default:
		h.logger.Error("create user failed", slog.Any("error", err))
		d.Password, d.ConfirmPassword = "", ""
		h.render(w, r, "pages/users/form.html", "New user", formView{Draft: d, Roles: h.roleOptions(), Error: shared.UserSafeMessage(err)}, http.StatusBadGateway)
	}
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	m := h.mount(r)
	defer m.Unmount()
	if _, err := m.ListUsers(r.Context()); err != nil {
		h.fail(w, r, "load user", "/users", err)
		return
	}
	u, found := m.Find(id)
	if !found {
		h.redirectWithFlash(w, r, "/users", "error", "User not found")
		return
	}
	h.render(w, r, "pages/users/edit.html", "Edit "+u.Username, editView{User: u, Roles: h.roleOptions()}, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	f := IdentityFields{
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
	}
	m := h.mount(r)
	defer m.Unmount()
	if _, err := m.UpdateUser(r.Context(), id, f); err != nil {
		h.fail(w, r, "update user", editPath(id), err)
		return
	}
	h.record(r, "user.update", id, map[string]any{"username": f.Username})
	h.redirectWithFlash(w, r, editPath(id), "success", "Profile details saved")
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	role, department := r.PostFormValue("role"), r.PostFormValue("department")
	m := h.mount(r)
	defer m.Unmount()
	if err := m.SetRole(r.Context(), id, role, department); err != nil {
		h.fail(w, r, "set role", editPath(id), err)
		return
	}
	h.record(r, "user.set_role", id, map[string]any{"role": role, "department": department})
	h.redirectWithFlash(w, r, editPath(id), "success", "Role updated")
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	m := h.mount(r)
	defer m.Unmount()
	if _, err := m.ListUsers(r.Context()); err != nil {
		h.fail(w, r, "load user", "/users", err)
		return
	}
	active, err := m.ToggleActive(r.Context(), id)
	if err != nil {
		h.fail(w, r, "toggle user", "/users", err)
		return
	}
	action, message := "user.deactivate", "User deactivated"
	if active {
		action, message = "user.activate", "User activated"
	}
	h.record(r, action, id, nil)
	h.redirectWithFlash(w, r, "/users", "success", message)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	m := h.mount(r)
	defer m.Unmount()
	if h.notifier != nil {
		// The notice needs the user's address.
		if _, err := m.ListUsers(r.Context()); err != nil {
			h.logger.Warn("load user for password notice", slog.Any("error", err))
		}
	}
	if err := m.ResetPassword(r.Context(), id, r.PostFormValue("password"), r.PostFormValue("confirm_password")); err != nil {
		h.fail(w, r, "reset password", editPath(id), err)
		return
	}
	h.record(r, "user.reset_password", id, nil)
	h.redirectWithFlash(w, r, editPath(id), "success", "Password reset")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	m := h.mount(r)
	defer m.Unmount()
	if err := m.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, "delete user", "/users", err)
		return
	}
	h.record(r, "user.delete", id, nil)
	h.redirectWithFlash(w, r, "/users", "success", "User deleted")
}

// fail turns a manager error into a flash and a redirect to back. Session
// expiry goes to the login page instead.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op, back string, err error) {
	if errors.Is(err, ErrPasswordMismatch) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		h.redirectWithFlash(w, r, back, "error", validationMessage(err))
		return
	}
	if shared.RedirectIfExpired(w, r, err) {
		return
	}
	h.logger.Error(op+" failed", slog.Any("error", err))
	h.redirectWithFlash(w, r, back, "error", shared.UserSafeMessage(err))
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithFlash(w, r, "/users", "error", "User not found")
		return 0, false
	}
	return id, true
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

func (h *Handler) record(r *http.Request, action string, id int64, meta map[string]any) {
	err := h.audit.Record(context.WithoutCancel(r.Context()), shared.AuditLog{
		Actor:    shared.Actor(shared.SessionFromContext(r.Context())),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		h.logger.Warn("audit user change", slog.Any("error", err))
	}
}

func editPath(id int64) string {
	return "/users/" + strconv.FormatInt(id, 10) + "/edit"
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match."
	case errors.Is(err, ErrUnknownRole):
		return "Choose one of the listed roles."
	case errors.Is(err, ErrValidation):
		return "Please fill in every required field. Passwords need at least 8 characters."
	case errors.Is(err, ErrNotFound):
		return "User not found"
	default:
		return shared.GenericFailureMessage
	}
}
