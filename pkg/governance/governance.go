// Package governance holds the static role/permission mapping for one
// controlled entity type. A Table is built once at startup from a
// role -> permissions map and is immutable afterwards; the inverse
// permission -> roles mapping is computed eagerly at construction.
package governance

import "sort"

// Permission identifies an action that can be required of a caller.
// Permissions are never persisted; they only exist in governance
// tables.
type Permission string

// Role identifies an access level. Roles are persisted in role
// assignments.
type Role string

// Table is the immutable governance table for one entity type.
type Table struct {
	roles           []Role
	permissionRoles map[Permission][]Role
}

// NewTable builds a governance table from a role -> permissions map.
// Construction is total: every role in the input appears in Roles(),
// including roles that grant no permissions.
func NewTable(rolePermissions map[Role][]Permission) *Table {
	roles := make([]Role, 0, len(rolePermissions))
	for role := range rolePermissions {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	permissionRoles := make(map[Permission][]Role)
	for _, role := range roles {
		for _, permission := range rolePermissions[role] {
			permissionRoles[permission] = append(permissionRoles[permission], role)
		}
	}

	return &Table{
		roles:           roles,
		permissionRoles: permissionRoles,
	}
}

// Roles returns all declared roles in deterministic order.
func (t *Table) Roles() []Role {
	out := make([]Role, len(t.roles))
	copy(out, t.roles)
	return out
}

// HasRole reports whether role is part of the declared role
// vocabulary.
func (t *Table) HasRole(role Role) bool {
	for _, r := range t.roles {
		if r == role {
			return true
		}
	}
	return false
}

// RolesFor returns the roles that satisfy the given permission, in
// deterministic order. The result is empty for unknown permissions.
func (t *Table) RolesFor(permission Permission) []Role {
	roles := t.permissionRoles[permission]
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// PermissionToRoles returns the full inverse mapping. The returned map
// is a copy; mutating it does not affect the table.
func (t *Table) PermissionToRoles() map[Permission][]Role {
	out := make(map[Permission][]Role, len(t.permissionRoles))
	for permission, roles := range t.permissionRoles {
		rs := make([]Role, len(roles))
		copy(rs, roles)
		out[permission] = rs
	}
	return out
}

// RoleStrings returns the declared roles as plain strings, for
// callers that validate user input.
func (t *Table) RoleStrings() []string {
	out := make([]string, len(t.roles))
	for i, r := range t.roles {
		out[i] = string(r)
	}
	return out
}
