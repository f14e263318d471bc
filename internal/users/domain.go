package users

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPasswordMismatch is returned before any backend call when the two
	// password fields differ.
	ErrPasswordMismatch = errors.New("users: passwords do not match")
	// ErrValidation is returned when a draft misses required fields.
	ErrValidation = errors.New("users: invalid input")
	// ErrUnknownRole is returned before any backend call for a role outside
	// the console's role options.
	ErrUnknownRole = fmt.Errorf("%w: unknown role", ErrValidation)
	// ErrNotFound is returned when the id is not in the loaded list.
	ErrNotFound = errors.New("users: not found")
	// ErrPartiallyCreated marks an account that exists upstream without its
	// intended role.
	ErrPartiallyCreated = errors.New("users: account created without its role")
)

// User is a console account as the backend reports it.
type User struct {
	ID         int64
	Username   string
	Email      string
	FirstName  string
	LastName   string
	IsActive   bool
	Role       string
	Department string
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Draft is the create-user form.
type Draft struct {
	Username        string `validate:"required,max=150"`
	Email           string `validate:"required,email"`
	FirstName       string `validate:"max=150"`
	LastName        string `validate:"max=150"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string
	Role            string `validate:"required"`
	Department      string `validate:"max=100"`
}

// IdentityFields are the only fields UpdateUser changes.
type IdentityFields struct {
	Username  string `validate:"required,max=150"`
	Email     string `validate:"required,email"`
	FirstName string `validate:"max=150"`
	LastName  string `validate:"max=150"`
}

// PartialCreateError reports a created account whose role assignment failed
// and whose compensating delete failed too.
type PartialCreateError struct {
	User        User
	AssignErr   error
	RollbackErr error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("user %d created without role %q: assign: %v; rollback: %v", e.User.ID, e.User.Role, e.AssignErr, e.RollbackErr)
}

// Unwrap exposes ErrPartiallyCreated and both underlying failures.
func (e *PartialCreateError) Unwrap() []error {
	return []error{ErrPartiallyCreated, e.AssignErr, e.RollbackErr}
}
