package orgs

import (
	"time"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
)

// Collection is the document collection holding organizations.
const Collection = "organizations"

// Organization is the tenancy root document.
type Organization struct {
	ID string `json:"id"`
	accesscontrol.Controlled
	Name              string             `json:"name"`
	Teams             []Team             `json:"teams,omitempty"`
	ProjectGroups     []ProjectGroup     `json:"projectGroups,omitempty"`
	RegisteredThemes  []RegisteredTheme  `json:"registeredThemes,omitempty"`
	MembershipInvites []MembershipInvite `json:"membershipInvites,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Team is a named group of users inside an organization. Team
// membership is recorded on the user documents; the team itself
// carries the ACL governing who may administer it.
type Team struct {
	ID string `json:"id"`
	accesscontrol.Controlled
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectGroup bundles related projects under an organization.
type ProjectGroup struct {
	ID string `json:"id"`
	accesscontrol.Controlled
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisteredTheme is a theme registered by an organization.
type RegisteredTheme struct {
	ID string `json:"id"`
	accesscontrol.Controlled
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MembershipInvite is a pending invitation for an email address to
// join the organization with a role. Invites do not expire; they live
// until accepted or revoked, and issuing a new invite for the same
// email supersedes the pending one.
//
// Only the token hash is persisted. The plaintext token is set on the
// invite returned from issuance and exists nowhere else.
type MembershipInvite struct {
	ID        string          `json:"id"`
	TokenHash string          `json:"tokenHash"`
	Email     string          `json:"email"`
	Role      governance.Role `json:"role"`
	CreatedAt time.Time       `json:"createdAt"`

	Token string `json:"token,omitempty"`
}
