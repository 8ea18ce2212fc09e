package accesscontrol

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatehouse-dev/gatehouse/pkg/governance"
)

// Subject names the entity a role assignment is granted to: exactly
// one of UserID or TeamID is set.
type Subject struct {
	UserID string `json:"userId,omitempty"`
	TeamID string `json:"teamId,omitempty"`
}

// UserSubject names an individual user.
func UserSubject(userID string) Subject {
	return Subject{UserID: userID}
}

// TeamSubject names a team; the assignment covers all team members.
func TeamSubject(teamID string) Subject {
	return Subject{TeamID: teamID}
}

// Equal reports whether both subjects name the same user or team.
func (s Subject) Equal(other Subject) bool {
	return s.UserID == other.UserID && s.TeamID == other.TeamID
}

// RoleAssignment binds a subject to a role on one controlled object.
// The assignment has its own identity, distinct from the object it
// controls.
type RoleAssignment struct {
	ID string `json:"id,omitempty"`
	Subject
	Role governance.Role `json:"role"`
}

// ACL is the ordered list of role assignments attached to a controlled
// object. Order carries no semantics; it is exposed for inspection.
type ACL []RoleAssignment

// WithSubjectRole returns the ACL with any prior assignment for the
// subject replaced by a fresh assignment carrying the given role. An
// object holds at most one assignment per distinct subject.
func (a ACL) WithSubjectRole(subject Subject, role governance.Role) ACL {
	out := a.WithoutSubject(subject)
	return append(out, RoleAssignment{
		ID:      uuid.NewString(),
		Subject: subject,
		Role:    role,
	})
}

// WithoutSubject returns the ACL with all assignments for the subject
// removed. Removing an absent subject is a no-op.
func (a ACL) WithoutSubject(subject Subject) ACL {
	out := make(ACL, 0, len(a))
	for _, assignment := range a {
		if subject.UserID != "" && assignment.UserID == subject.UserID {
			continue
		}
		if subject.TeamID != "" && assignment.TeamID == subject.TeamID {
			continue
		}
		out = append(out, assignment)
	}
	return out
}

// HasAnyFor reports whether any assignment names the user or one of
// the teams, regardless of role.
func (a ACL) HasAnyFor(userID string, teamIDs []string) bool {
	for _, assignment := range a {
		if assignment.matches(userID, teamIDs) {
			return true
		}
	}
	return false
}

// HasRoleFor reports whether an assignment for the user or one of the
// teams carries one of the possible roles.
func (a ACL) HasRoleFor(possibleRoles []governance.Role, userID string, teamIDs []string) bool {
	for _, assignment := range a {
		if !assignment.matches(userID, teamIDs) {
			continue
		}
		for _, role := range possibleRoles {
			if assignment.Role == role {
				return true
			}
		}
	}
	return false
}

func (r RoleAssignment) matches(userID string, teamIDs []string) bool {
	if r.UserID != "" && r.UserID == userID {
		return true
	}
	if r.TeamID != "" {
		for _, teamID := range teamIDs {
			if r.TeamID == teamID {
				return true
			}
		}
	}
	return false
}

// Controlled is embedded by any document type that owns an ACL. The
// ACL starts empty at object creation and is mutated only through the
// engines; it disappears with the object.
type Controlled struct {
	AccessControlList ACL `json:"accessControlList,omitempty"`
}

// OrganizationMembership records one organization a user belongs to
// and which of that organization's teams the user is part of.
type OrganizationMembership struct {
	OrganizationID string   `json:"organizationId"`
	Teams          []string `json:"teams,omitempty"`
}

// Principal is the authenticated actor an authorization decision is
// made for.
type Principal struct {
	ID                      string                   `json:"id"`
	Email                   string                   `json:"email,omitempty"`
	OrganizationMemberships []OrganizationMembership `json:"organizationMemberships,omitempty"`
}

// TeamIDs returns the union of team ids across all of the principal's
// organization memberships.
func (p *Principal) TeamIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, membership := range p.OrganizationMemberships {
		for _, teamID := range membership.Teams {
			if _, ok := seen[teamID]; ok {
				continue
			}
			seen[teamID] = struct{}{}
			out = append(out, teamID)
		}
	}
	return out
}

// IsMemberOf reports whether the principal belongs to the
// organization.
func (p *Principal) IsMemberOf(organizationID string) bool {
	for _, membership := range p.OrganizationMemberships {
		if membership.OrganizationID == organizationID {
			return true
		}
	}
	return false
}

// DefaultRoleMatcher decides whether the principal holds at least the
// implicit default access level for the object (for organizations:
// membership). When it declines, the engine falls back to "any
// assignment in the ACL".
type DefaultRoleMatcher func(ctx context.Context, principal *Principal, objectID string) (bool, error)
