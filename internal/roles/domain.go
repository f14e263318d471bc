package roles

import (
	"errors"
	"time"
)

var (
	// ErrValidation is returned when a draft lacks a name or display name.
	ErrValidation = errors.New("roles: name and display name are required")
	// ErrProtectedRole is returned when deleting or renaming a protected role.
	ErrProtectedRole = errors.New("roles: protected role")
	// ErrNotFound is returned for an unknown role id.
	ErrNotFound = errors.New("roles: not found")
	// ErrDuplicateName is returned when another role already uses the name.
	ErrDuplicateName = errors.New("roles: name already in use")
)

// protectedNames cannot be deleted or renamed.
var protectedNames = map[string]struct{}{"admin": {}, "user": {}}

// IsProtected reports whether name is a protected role.
func IsProtected(name string) bool {
	_, ok := protectedNames[name]
	return ok
}

// Role represents a role for management.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Permissions PermissionSet
	UserCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Protected reports whether the role is one of the protected names.
func (r Role) Protected() bool {
	return IsProtected(r.Name)
}

// Draft holds the editable fields of a role form.
type Draft struct {
	Name        string `validate:"required"`
	DisplayName string `validate:"required"`
	Description string
	Permissions PermissionSet
}

// DraftOf copies a role into an editable draft.
func DraftOf(r Role) Draft {
	return Draft{Name: r.Name, DisplayName: r.DisplayName, Description: r.Description, Permissions: r.Permissions.Clone()}
}

// TogglePermission adds id when absent and removes it when present.
func (d *Draft) TogglePermission(id string) {
	if d.Permissions == nil {
		d.Permissions = PermissionSet{}
	}
	if d.Permissions.Has(id) {
		delete(d.Permissions, id)
		return
	}
	d.Permissions[id] = struct{}{}
}

// SetCategoryPermissions selects or clears every permission of category.
func (d *Draft) SetCategoryPermissions(catalog *Catalog, category string, selected bool) {
	if d.Permissions == nil {
		d.Permissions = PermissionSet{}
	}
	for _, p := range catalog.InCategory(category) {
		if selected {
			d.Permissions[p.ID] = struct{}{}
		} else {
			delete(d.Permissions, p.ID)
		}
	}
}

// CategoryState is the tri-state of a category checkbox.
type CategoryState string

const (
	CategoryNone CategoryState = "none"
	CategorySome CategoryState = "some"
	CategoryAll  CategoryState = "all"
)

// CategoryStateOf reports how much of category the draft holds. An unknown or
// empty category is always none.
func CategoryStateOf(catalog *Catalog, category string, d Draft) CategoryState {
	perms := catalog.InCategory(category)
	held := 0
	for _, p := range perms {
		if d.Permissions.Has(p.ID) {
			held++
		}
	}
	switch {
	case held == 0:
		return CategoryNone
	case held == len(perms):
		return CategoryAll
	default:
		return CategorySome
	}
}
