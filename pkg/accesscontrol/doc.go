// Package accesscontrol implements the role assignment engine: it
// grants, revokes and evaluates per-object role assignments stored in
// an access control list on any controlled document.
//
// Two subject kinds exist: individual users and teams. A team role
// transitively grants access to every member of the team, and
// authorization is a logical OR across all assignments matching the
// principal — any one sufficient assignment grants access.
//
// The Engine operates on top-level documents; the NestedEngine applies
// the same operations to elements of a named sub-collection on a host
// document (an organization's teams, project groups, registered
// themes, or any registered future collection), with the per-field
// role vocabulary and default-access predicate resolved from a typed
// registry established at setup time.
package accesscontrol
