package shared

import (
	"net/http"
	"net/url"
	"strings"
)

// Well-known console paths.
const (
	LoginPath   = "/auth/login"
	LandingPath = "/"
)

// RedirectToLogin sends the browser to the login page, remembering where it was.
// It does nothing and returns false when the request already targets the login page.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Path == LoginPath {
		return false
	}
	target := LoginPath
	if r.Method == http.MethodGet && r.URL.Path != LandingPath {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
	return true
}

// SafeNext returns next when it is a same-origin absolute path, otherwise LandingPath.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return LandingPath
	}
	if next == LoginPath || strings.HasPrefix(next, LoginPath+"?") {
		return LandingPath
	}
	return next
}
