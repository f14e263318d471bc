package roles

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Manager keeps the console's roles in memory. Roles are not persisted
// upstream; the backend only knows role names through set_role.
type Manager struct {
	mu       sync.RWMutex
	catalog  *Catalog
	validate *validator.Validate
	roles    []Role
	nextID   int64
	now      func() time.Time
}

// NewManager builds a Manager seeded with the built-in roles.
func NewManager(catalog *Catalog) *Manager {
	m := &Manager{catalog: catalog, validate: validator.New(), nextID: 1, now: time.Now}
	for _, d := range seedDrafts(catalog) {
		m.insert(d)
	}
	return m
}

func seedDrafts(c *Catalog) []Draft {
	all := c.All()
	manager := NewPermissionSet()
	engineer := NewPermissionSet()
	user := NewPermissionSet()
	for id := range all {
		switch {
		case strings.HasPrefix(id, "users_"), strings.HasPrefix(id, "roles_"), strings.HasPrefix(id, "settings_"):
		case strings.HasSuffix(id, "_delete"):
			manager[id] = struct{}{}
		default:
			manager[id] = struct{}{}
			engineer[id] = struct{}{}
		}
		if strings.HasSuffix(id, "_access") && !strings.HasPrefix(id, "users_") && !strings.HasPrefix(id, "roles_") && !strings.HasPrefix(id, "settings_") {
			user[id] = struct{}{}
		}
	}
	admin := all.Clone()
	delete(admin, "settings_delete")
	return []Draft{
		{Name: "super_admin", DisplayName: "Super Admin", Description: "Unrestricted access to every console area", Permissions: all},
		{Name: "admin", DisplayName: "Administrator", Description: "Manages users, roles and fleet data", Permissions: admin},
		{Name: "manager", DisplayName: "Manager", Description: "Oversees network performance and rollout tracking", Permissions: manager},
		{Name: "engineer", DisplayName: "Engineer", Description: "Works on sites, tasks and device entries", Permissions: engineer},
		{Name: "user", DisplayName: "User", Description: "Read-only access to dashboards and reports", Permissions: user},
	}
}

// Catalog returns the permission catalog the manager validates against.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// List returns a copy of every role in id order.
func (m *Manager) List() []Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, len(m.roles))
	for i, r := range m.roles {
		out[i] = cloneRole(r)
	}
	return out
}

// Names returns the role names in id order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.roles))
	for i, r := range m.roles {
		out[i] = r.Name
	}
	return out
}

// Get returns the role with id.
func (m *Manager) Get(id int64) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return Role{}, ErrNotFound
	}
	return cloneRole(m.roles[idx]), nil
}

// CreateRole validates draft and appends a role with a fresh id and no users.
func (m *Manager) CreateRole(draft Draft) (Role, error) {
	draft, err := m.clean(draft)
	if err != nil {
		return Role{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(draft.Name, 0) {
		return Role{}, fmt.Errorf("create %s: %w", draft.Name, ErrDuplicateName)
	}
	return cloneRole(m.insert(draft)), nil
}

// UpdateRole replaces the mutable fields of role id, keeping its id and user
// count. Protected roles keep their name.
func (m *Manager) UpdateRole(id int64, draft Draft) (Role, error) {
	draft, err := m.clean(draft)
	if err != nil {
		return Role{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return Role{}, ErrNotFound
	}
	role := &m.roles[idx]
	if role.Protected() && draft.Name != role.Name {
		return Role{}, fmt.Errorf("rename %s: %w", role.Name, ErrProtectedRole)
	}
	if m.nameTaken(draft.Name, id) {
		return Role{}, fmt.Errorf("rename %s: %w", role.Name, ErrDuplicateName)
	}
	role.Name = draft.Name
	role.DisplayName = draft.DisplayName
	role.Description = draft.Description
	role.Permissions = draft.Permissions
	role.UpdatedAt = m.now()
	return cloneRole(*role), nil
}

// DeleteRole removes role id unless it is protected.
func (m *Manager) DeleteRole(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	if m.roles[idx].Protected() {
		return fmt.Errorf("delete %s: %w", m.roles[idx].Name, ErrProtectedRole)
	}
	m.roles = slices.Delete(m.roles, idx, idx+1)
	return nil
}

// RecountUsers sets each role's user count from counts keyed by role name.
// Roles missing from counts drop to zero.
func (m *Manager) RecountUsers(counts map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.roles {
		m.roles[i].UserCount = counts[m.roles[i].Name]
	}
}

// Validate checks draft the way CreateRole and UpdateRole do, without saving.
func (m *Manager) Validate(draft Draft) error {
	_, err := m.clean(draft)
	return err
}

func (m *Manager) clean(draft Draft) (Draft, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.DisplayName = strings.TrimSpace(draft.DisplayName)
	draft.Description = strings.TrimSpace(draft.Description)
	if err := m.validate.Struct(draft); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	perms := make(PermissionSet, len(draft.Permissions))
	for id := range draft.Permissions {
		if m.catalog.Known(id) {
			perms[id] = struct{}{}
		}
	}
	draft.Permissions = perms
	return draft, nil
}

func (m *Manager) insert(d Draft) Role {
	now := m.now()
	role := Role{
		ID:          m.nextID,
		Name:        d.Name,
		DisplayName: d.DisplayName,
		Description: d.Description,
		Permissions: d.Permissions.Clone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.nextID++
	m.roles = append(m.roles, role)
	return role
}

// nameTaken reports whether a role other than except already uses name.
func (m *Manager) nameTaken(name string, except int64) bool {
	for _, r := range m.roles {
		if r.ID != except && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

func (m *Manager) indexOf(id int64) int {
	return slices.IndexFunc(m.roles, func(r Role) bool { return r.ID == id })
}

func cloneRole(r Role) Role {
	r.Permissions = r.Permissions.Clone()
	return r
}
