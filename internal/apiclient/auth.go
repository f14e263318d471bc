package apiclient

import (
	"context"
	"net/http"
)

// Credentials carries an email login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UsernameCredentials carries a username login.
type UsernameCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the self-service sign-up payload.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Profile is the authenticated user's account as returned by /auth/me/.
type Profile struct {
	ID         int64  `json:"id" yaml:"id"`
	Username   string `json:"username" yaml:"username"`
	Email      string `json:"email" yaml:"email"`
	FirstName  string `json:"first_name" yaml:"first_name"`
	LastName   string `json:"last_name" yaml:"last_name"`
	Role       string `json:"role" yaml:"role"`
	Department string `json:"department,omitempty" yaml:"department,omitempty"`
	IsActive   bool   `json:"is_active" yaml:"is_active"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginResult is the session payload returned by the login endpoints.
type LoginResult struct {
	Token   string  `json:"token"`
	Access  string  `json:"access"`
	Refresh string  `json:"refresh"`
	User    Profile `json:"user"`
}

// BearerToken returns whichever token field the backend populated.
func (r LoginResult) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.Access
}

// AuthAPI groups authentication calls.
type AuthAPI struct {
	c *Client
}

// Auth returns the authentication call group.
func (c *Client) Auth() AuthAPI {
	return AuthAPI{c: c}
}

// Login authenticates with a username.
func (a AuthAPI) Login(ctx context.Context, creds UsernameCredentials) (LoginResult, error) {
	var out LoginResult
	err := a.c.Request(ctx, http.MethodPost, "/auth/login/", creds, &out)
	return out, err
}

// EmailLogin authenticates with an email address.
func (a AuthAPI) EmailLogin(ctx context.Context, creds Credentials) (LoginResult, error) {
	var out LoginResult
	err := a.c.Request(ctx, http.MethodPost, "/auth/email-login/", creds, &out)
	return out, err
}

// Register creates a new account.
func (a AuthAPI) Register(ctx context.Context, reg Registration) (Profile, error) {
	var out Profile
	err := a.c.Request(ctx, http.MethodPost, "/auth/register/", reg, &out)
	return out, err
}

// GetProfile fetches the current user's profile.
func (a AuthAPI) GetProfile(ctx context.Context) (Profile, error) {
	var out Profile
	err := a.c.Request(ctx, http.MethodGet, "/auth/me/", nil, &out)
	return out, err
}

// UpdateProfile saves the current user's profile.
func (a AuthAPI) UpdateProfile(ctx context.Context, update ProfileUpdate) (Profile, error) {
	var out Profile
	err := a.c.Request(ctx, http.MethodPut, "/auth/me/", update, &out)
	return out, err
}
