package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        *shared.Identity
	Data        any
}

// NewTemplateData fills the per-request fields every page needs.
func NewTemplateData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	td := TemplateData{Title: title, CurrentPath: r.URL.Path, Data: data}
	if sess == nil {
		return td
	}
	if csrf != nil {
		td.CSRFToken, _ = csrf.EnsureToken(r.Context(), sess)
	}
	td.Flash = sess.PopFlash()
	if id, ok := sess.Identity(); ok {
		td.User = &id
	}
	return td
}

// RoleLabel turns a role name such as super_admin into "Super Admin".
func RoleLabel(role string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(role, "_", " "))
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"roleLabel": RoleLabel,
		"isAdmin": func(u *shared.Identity) bool {
			if u == nil {
				return false
			}
			return u.Role == shared.RoleAdmin || u.Role == shared.RoleSuperAdmin
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData and a 200 status.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a named template and writes it with status. Nothing is
// written when execution fails.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
