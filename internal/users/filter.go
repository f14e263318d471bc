package users

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter returns the users whose username, email or "first last" contains
// query, ignoring case. An empty query keeps everyone.
func Filter(list []User, query string) []User {
	query = strings.TrimSpace(query)
	if query == "" {
		return list
	}
	fold := cases.Fold()
	needle := fold.String(query)
	var out []User
	for _, u := range list {
		for _, field := range []string{u.Username, u.Email, u.FirstName + " " + u.LastName} {
			if strings.Contains(fold.String(field), needle) {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// Bucket is one tab of the user list.
type Bucket struct {
	Key   string
	Label string
	Users []User
}

type bucketDef struct {
	key, label string
	match      func(User) bool
}

func byRole(role string) func(User) bool {
	return func(u User) bool { return u.Role == role }
}

var bucketDefs = []bucketDef{
	{"all", "All Users", func(User) bool { return true }},
	{"super_admin", "Super Admins", byRole("super_admin")},
	{"admin", "Admins", byRole("admin")},
	{"manager", "Managers", byRole("manager")},
	{"engineer", "Engineers", byRole("engineer")},
	{"user", "Users", byRole("user")},
	{"active", "Active Users", func(u User) bool { return u.IsActive }},
	{"inactive", "Inactive Users", func(u User) bool { return !u.IsActive }},
}

// Buckets partitions list into the fixed tabs. It is recomputed from the
// current list on every call.
func Buckets(list []User) []Bucket {
	out := make([]Bucket, len(bucketDefs))
	for i, def := range bucketDefs {
		out[i] = Bucket{Key: def.key, Label: def.label}
		for _, u := range list {
			if def.match(u) {
				out[i].Users = append(out[i].Users, u)
			}
		}
	}
	return out
}

// BucketKeys lists the tab keys in display order.
func BucketKeys() []string {
	keys := make([]string, len(bucketDefs))
	for i, def := range bucketDefs {
		keys[i] = def.key
	}
	return keys
}

// CountByRole counts users per role name.
func CountByRole(list []User) map[string]int {
	counts := make(map[string]int)
	for _, u := range list {
		counts[u.Role]++
	}
	return counts
}
