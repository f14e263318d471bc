package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewCatalog(DefaultPermissions()))
}

func roleByName(t *testing.T, m *Manager, name string) Role {
	t.Helper()
	for _, r := range m.List() {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("role %q not seeded", name)
	return Role{}
}

func TestCatalogGroupsKeepFirstSeenOrder(t *testing.T) {
	c := NewCatalog([]Permission{
		{ID: "reports_access", Category: "reports"},
		{ID: "dashboard_access", Category: "dashboard"},
		{ID: "reports_edit", Category: "reports"},
		{ID: "wntd_access", Category: "wntd"},
	})
	groups := c.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, "reports", groups[0].Category)
	assert.Equal(t, "dashboard", groups[1].Category)
	assert.Equal(t, "wntd", groups[2].Category)
	assert.Len(t, groups[0].Permissions, 2)
	assert.Equal(t, "Reports", groups[0].Label)
}

func TestDefaultPermissionIDs(t *testing.T) {
	c := NewCatalog(DefaultPermissions())
	assert.Len(t, c.Groups(), 8)
	assert.True(t, c.Known("network_performance_access"))
	assert.True(t, c.Known("implementation_tracker_delete"))
	assert.False(t, c.Known("network_performance_view"))
	assert.Equal(t, "Network Performance", c.Groups()[1].Label)
}

func TestCreateRoleRejectsEmptyFields(t *testing.T) {
	m := newTestManager(t)
	before := m.List()

	for _, d := range []Draft{
		{Name: "", DisplayName: "Auditor"},
		{Name: "auditor", DisplayName: ""},
		{Name: "   ", DisplayName: "Auditor"},
	} {
		_, err := m.CreateRole(d)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Equal(t, before, m.List())
}

func TestCreateRoleAppendsWithDistinctID(t *testing.T) {
	m := newTestManager(t)
	before := m.List()

	role, err := m.CreateRole(Draft{Name: "auditor", DisplayName: "Auditor", Permissions: NewPermissionSet("reports_access", "bogus")})
	require.NoError(t, err)

	after := m.List()
	assert.Len(t, after, len(before)+1)
	for _, r := range before {
		assert.NotEqual(t, r.ID, role.ID)
	}
	assert.Zero(t, role.UserCount)
	assert.True(t, role.Permissions.Has("reports_access"))
	assert.False(t, role.Permissions.Has("bogus"))
}

func TestUpdateRoleKeepsIDAndUserCount(t *testing.T) {
	m := newTestManager(t)
	role, err := m.CreateRole(Draft{Name: "auditor", DisplayName: "Auditor"})
	require.NoError(t, err)
	m.RecountUsers(map[string]int{"auditor": 4})

	updated, err := m.UpdateRole(role.ID, Draft{Name: "auditor", DisplayName: "Field Auditor", Description: "desc"})
	require.NoError(t, err)
	assert.Equal(t, role.ID, updated.ID)
	assert.Equal(t, 4, updated.UserCount)
	assert.Equal(t, "Field Auditor", updated.DisplayName)

	_, err = m.UpdateRole(role.ID, Draft{Name: "auditor"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = m.UpdateRole(999, Draft{Name: "x", DisplayName: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProtectedRolesCannotBeDeleted(t *testing.T) {
	m := newTestManager(t)
	m.RecountUsers(map[string]int{})
	for _, name := range []string{"admin", "user"} {
		before := m.List()
		err := m.DeleteRole(roleByName(t, m, name).ID)
		assert.ErrorIs(t, err, ErrProtectedRole)
		assert.Equal(t, before, m.List())
	}
}

func TestProtectedRolesCannotBeRenamed(t *testing.T) {
	m := newTestManager(t)
	admin := roleByName(t, m, "admin")
	_, err := m.UpdateRole(admin.ID, Draft{Name: "root", DisplayName: "Root"})
	assert.ErrorIs(t, err, ErrProtectedRole)

	updated, err := m.UpdateRole(admin.ID, Draft{Name: "admin", DisplayName: "Admins"})
	require.NoError(t, err)
	assert.Equal(t, "Admins", updated.DisplayName)
}

func TestRoleNamesStayUnique(t *testing.T) {
	m := newTestManager(t)
	before := len(m.List())

	_, err := m.CreateRole(Draft{Name: "admin", DisplayName: "Second admin"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = m.CreateRole(Draft{Name: " Manager ", DisplayName: "Other manager"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Len(t, m.List(), before)

	engineer := roleByName(t, m, "engineer")
	_, err = m.UpdateRole(engineer.ID, Draft{Name: "user", DisplayName: "User"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, "engineer", roleByName(t, m, "engineer").Name)

	updated, err := m.UpdateRole(engineer.ID, Draft{Name: "engineer", DisplayName: "Field engineer"})
	require.NoError(t, err)
	assert.Equal(t, "Field engineer", updated.DisplayName)

	counts := map[string]int{}
	for _, r := range m.List() {
		counts[r.Name]++
	}
	for name, n := range counts {
		assert.Equal(t, 1, n, name)
	}
}

func TestDeleteRoleRemovesUnprotected(t *testing.T) {
	m := newTestManager(t)
	engineer := roleByName(t, m, "engineer")
	require.NoError(t, m.DeleteRole(engineer.ID))
	_, err := m.Get(engineer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTogglePermissionIsSymmetric(t *testing.T) {
	var d Draft
	d.TogglePermission("reports_access")
	assert.True(t, d.Permissions.Has("reports_access"))
	d.TogglePermission("reports_access")
	assert.False(t, d.Permissions.Has("reports_access"))
	assert.Empty(t, d.Permissions)
}

func TestCategoryStateTransitions(t *testing.T) {
	c := NewCatalog(DefaultPermissions())
	for _, g := range c.Groups() {
		d := Draft{Permissions: NewPermissionSet("dashboard_access")}
		d.SetCategoryPermissions(c, g.Category, true)
		assert.Equal(t, CategoryAll, CategoryStateOf(c, g.Category, d), g.Category)

		d.SetCategoryPermissions(c, g.Category, true)
		assert.Len(t, d.Permissions.IDs(), len(g.Permissions)+boolInt(g.Category != "dashboard"))

		d.SetCategoryPermissions(c, g.Category, false)
		assert.Equal(t, CategoryNone, CategoryStateOf(c, g.Category, d), g.Category)
	}
}

func TestCategoryStateSome(t *testing.T) {
	c := NewCatalog(DefaultPermissions())
	d := Draft{Permissions: NewPermissionSet("users_access")}
	assert.Equal(t, CategorySome, CategoryStateOf(c, "users", d))
	assert.Equal(t, CategoryNone, CategoryStateOf(c, "roles", d))
	assert.Equal(t, CategoryNone, CategoryStateOf(c, "unknown", d))
}

func TestListReturnsCopies(t *testing.T) {
	m := newTestManager(t)
	roles := m.List()
	roles[0].Permissions["injected"] = struct{}{}
	assert.False(t, m.List()[0].Permissions.Has("injected"))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
