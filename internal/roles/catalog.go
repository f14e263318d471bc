package roles

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Permission is one grantable capability.
type Permission struct {
	ID       string
	Name     string
	Category string
}

// PermissionSet is a set of permission ids.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from ids.
func NewPermissionSet(ids ...string) PermissionSet {
	set := make(PermissionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set. A nil set holds nothing.
func (s PermissionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the ids in sorted order.
func (s PermissionSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Group is the permissions of one category in catalog order.
type Group struct {
	Category    string
	Label       string
	Permissions []Permission
}

// Catalog is the fixed list of permissions grouped by category.
type Catalog struct {
	permissions []Permission
	groups      []Group
	byCategory  map[string]int
	known       map[string]struct{}
}

var (
	featureAreas = []string{
		"dashboard",
		"network_performance",
		"implementation_tracker",
		"wntd",
		"reports",
		"users",
		"roles",
		"settings",
	}
	actions = []string{"access", "create", "edit", "delete"}
)

// DefaultPermissions returns the console permission list: one permission per
// feature area and action, with ids of the form {area}_{action}.
func DefaultPermissions() []Permission {
	title := cases.Title(language.English)
	out := make([]Permission, 0, len(featureAreas)*len(actions))
	for _, area := range featureAreas {
		label := title.String(strings.ReplaceAll(area, "_", " "))
		for _, action := range actions {
			out = append(out, Permission{
				ID:       area + "_" + action,
				Name:     title.String(action) + " " + label,
				Category: area,
			})
		}
	}
	return out
}

// NewCatalog groups permissions by category, keeping the order in which each
// category first appears.
func NewCatalog(perms []Permission) *Catalog {
	title := cases.Title(language.English)
	c := &Catalog{
		permissions: slices.Clone(perms),
		byCategory:  make(map[string]int),
		known:       make(map[string]struct{}, len(perms)),
	}
	for _, p := range c.permissions {
		c.known[p.ID] = struct{}{}
		idx, ok := c.byCategory[p.Category]
		if !ok {
			idx = len(c.groups)
			c.byCategory[p.Category] = idx
			c.groups = append(c.groups, Group{Category: p.Category, Label: title.String(strings.ReplaceAll(p.Category, "_", " "))})
		}
		c.groups[idx].Permissions = append(c.groups[idx].Permissions, p)
	}
	return c
}

// Groups returns the categories in first-seen order.
func (c *Catalog) Groups() []Group {
	return c.groups
}

// InCategory returns the permissions of category, or nil.
func (c *Catalog) InCategory(category string) []Permission {
	idx, ok := c.byCategory[category]
	if !ok {
		return nil
	}
	return c.groups[idx].Permissions
}

// Known reports whether id is in the catalog.
func (c *Catalog) Known(id string) bool {
	_, ok := c.known[id]
	return ok
}

// All returns every permission id.
func (c *Catalog) All() PermissionSet {
	set := make(PermissionSet, len(c.permissions))
	for _, p := range c.permissions {
		set[p.ID] = struct{}{}
	}
	return set
}
