package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	upstream       shared.Upstream
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, upstream shared.Upstream, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		upstream:       upstream,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router. requireSignedIn
// guards the profile pages.
func (h *Handler) MountRoutes(r chi.Router, requireSignedIn func(http.Handler) http.Handler) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		if requireSignedIn != nil {
			r.Use(requireSignedIn)
		}
		r.Get("/profile", h.showProfile)
		r.Post("/profile", h.updateProfile)
	})
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Email string
	Next  string
	Error string
}

type profilePageData struct {
	Profile apiclient.Profile
	Error   string
}

type profileForm struct {
	Email     string `validate:"required,email"`
	FirstName string `validate:"max=150"`
	LastName  string `validate:"max=150"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	next := shared.SafeNext(r.URL.Query().Get("next"))
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.Authenticated(time.Now()) {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/login.html", "Sign in", loginPageData{Next: next}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	data := loginPageData{Email: form.Email, Next: shared.SafeNext(r.PostFormValue("next"))}
	if err := h.validator.Struct(form); err != nil {
		data.Error = "Enter a valid email address and your password."
		h.render(w, r, "pages/login.html", "Sign in", data, http.StatusBadRequest)
		return
	}

	identity, token, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		status := http.StatusBadRequest
		data.Error = "Invalid email or password."
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login failed", slog.Any("error", err))
			data.Error = shared.UserSafeMessage(err)
			status = http.StatusBadGateway
		}
		h.render(w, r, "pages/login.html", "Sign in", data, status)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.Establish(identity, token)
	h.csrfManager.Rotate(sess)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + identity.Username})
	http.Redirect(w, r, data.Next, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if _, err := h.sessionManager.Teardown(r.Context(), sess, shared.ReasonLogout); err != nil {
			h.logger.Warn("logout teardown", slog.Any("error", err))
		}
	}
	http.Redirect(w, r, shared.LoginPath, http.StatusSeeOther)
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.upstream.For(r).Auth().GetProfile(r.Context())
	if err != nil {
		if shared.RedirectIfExpired(w, r, err) {
			return
		}
		h.logger.Error("load profile", slog.Any("error", err))
		h.render(w, r, "pages/profile.html", "My profile", profilePageData{Profile: h.profileFromSession(r), Error: shared.UserSafeMessage(err)}, http.StatusBadGateway)
		return
	}
	h.render(w, r, "pages/profile.html", "My profile", profilePageData{Profile: profile}, http.StatusOK)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	form := profileForm{
		Email:     r.PostFormValue("email"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
	}
	current := h.profileFromSession(r)
	current.Email, current.FirstName, current.LastName = form.Email, form.FirstName, form.LastName
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, "pages/profile.html", "My profile", profilePageData{Profile: current, Error: "Enter a valid email address."}, http.StatusUnprocessableEntity)
		return
	}
	updated, err := h.upstream.For(r).Auth().UpdateProfile(r.Context(), apiclient.ProfileUpdate(form))
	if err != nil {
		if shared.RedirectIfExpired(w, r, err) {
			return
		}
		h.logger.Error("update profile", slog.Any("error", err))
		h.render(w, r, "pages/profile.html", "My profile", profilePageData{Profile: current, Error: shared.UserSafeMessage(err)}, http.StatusBadGateway)
		return
	}
	h.logger.Info("profile updated", slog.Int64("user_id", updated.ID))
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Profile saved"})
	}
	http.Redirect(w, r, "/auth/profile", http.StatusSeeOther)
}

func (h *Handler) profileFromSession(r *http.Request) apiclient.Profile {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return apiclient.Profile{}
	}
	id, _ := sess.Identity()
	return apiclient.Profile{ID: id.UserID, Username: id.Username, Role: id.Role, Department: id.Department}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	viewData := view.NewTemplateData(r, h.csrfManager, title, data)
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render "+template, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
