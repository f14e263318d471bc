// Package rbac gates console pages on the signed-in user's role.
//
// The checks here only shape what the browser is shown. The backend enforces
// the same authorization on every call it receives.
package rbac

import (
	"time"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
)

// State is the outcome of resolving a session against a guard.
type State int

const (
	// StateResolving means the session has not been loaded yet; nothing protected may render.
	StateResolving State = iota
	// StateRedirecting means the visitor is not signed in and is being sent to the login page.
	StateRedirecting
	// StateDenied means the visitor is signed in but lacks a permitted role.
	StateDenied
	// StateAuthorized means the protected content may render.
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateRedirecting:
		return "redirecting"
	case StateDenied:
		return "denied"
	case StateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// SessionView is the part of a session the guard looks at.
type SessionView struct {
	Loading       bool
	Authenticated bool
	Username      string
	Role          string
}

// ViewOf summarises sess. A nil session is still loading.
func ViewOf(sess *shared.Session, now time.Time) SessionView {
	if sess == nil {
		return SessionView{Loading: true}
	}
	view := SessionView{Authenticated: sess.Authenticated(now)}
	if id, ok := sess.Identity(); ok {
		view.Username = id.Username
		view.Role = id.Role
	}
	return view
}

// Guard decides which State a session is in.
type Guard struct {
	// AllowedRoles may pass. An empty list admits any signed-in user.
	AllowedRoles []string
	// BypassUsername passes regardless of role when non-empty.
	BypassUsername string
}

// AdminGuard admits admin and super_admin plus the bypass identity.
func AdminGuard(bypassUsername string) Guard {
	return Guard{AllowedRoles: shared.AdminRoles(), BypassUsername: bypassUsername}
}

// SignedInGuard admits any signed-in user.
func SignedInGuard() Guard {
	return Guard{}
}

// Resolve maps v onto a State.
func (g Guard) Resolve(v SessionView) State {
	if v.Loading {
		return StateResolving
	}
	if !v.Authenticated {
		return StateRedirecting
	}
	if len(g.AllowedRoles) == 0 {
		return StateAuthorized
	}
	if g.BypassUsername != "" && v.Username == g.BypassUsername {
		return StateAuthorized
	}
	for _, role := range g.AllowedRoles {
		if v.Role == role {
			return StateAuthorized
		}
	}
	return StateDenied
}
