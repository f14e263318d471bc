package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// UserRecord is a user account as the backend serializes it.
type UserRecord struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	IsActive   bool   `json:"is_active"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// NewUser is the create-user payload.
type NewUser struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// UserUpdate carries the identity fields editable through PUT /users/{id}/.
type UserUpdate struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RoleAssignment is the set_role payload.
type RoleAssignment struct {
	Role       string `json:"role"`
	Department string `json:"department"`
}

// UsersAPI groups user administration calls.
type UsersAPI struct {
	c *Client
}

// Users returns the user administration call group.
func (c *Client) Users() UsersAPI {
	return UsersAPI{c: c}
}

// List fetches every user.
func (u UsersAPI) List(ctx context.Context) ([]UserRecord, error) {
	var out list[UserRecord]
	if err := u.c.Request(ctx, http.MethodGet, "/users/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create registers a new account.
func (u UsersAPI) Create(ctx context.Context, user NewUser) (UserRecord, error) {
	var out UserRecord
	err := u.c.Request(ctx, http.MethodPost, "/users/", user, &out)
	return out, err
}

// Update saves identity fields.
func (u UsersAPI) Update(ctx context.Context, id int64, update UserUpdate) (UserRecord, error) {
	var out UserRecord
	err := u.c.Request(ctx, http.MethodPut, userPath(id, ""), update, &out)
	return out, err
}

// Delete removes the account permanently.
func (u UsersAPI) Delete(ctx context.Context, id int64) error {
	return u.c.Request(ctx, http.MethodDelete, userPath(id, ""), nil, nil)
}

// SetRole assigns role and department together.
func (u UsersAPI) SetRole(ctx context.Context, id int64, assignment RoleAssignment) error {
	return u.c.Request(ctx, http.MethodPost, userPath(id, "set_role"), assignment, nil)
}

// Activate enables the account.
func (u UsersAPI) Activate(ctx context.Context, id int64) error {
	return u.c.Request(ctx, http.MethodPost, userPath(id, "activate"), nil, nil)
}

// Deactivate disables the account.
func (u UsersAPI) Deactivate(ctx context.Context, id int64) error {
	return u.c.Request(ctx, http.MethodPost, userPath(id, "deactivate"), nil, nil)
}

// ResetPassword sets a new password.
func (u UsersAPI) ResetPassword(ctx context.Context, id int64, password string) error {
	return u.c.Request(ctx, http.MethodPost, userPath(id, "reset_password"), map[string]string{"password": password}, nil)
}

func userPath(id int64, action string) string {
	if action == "" {
		return fmt.Sprintf("/users/%d/", id)
	}
	return fmt.Sprintf("/users/%d/%s/", id, action)
}
