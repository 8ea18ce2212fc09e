// Package orgs provides multi-tenant organization management.
//
// # Overview
//
// An organization is the tenancy root: it owns teams, project groups
// and registered themes as embedded sub-collections, carries its own
// access control list, and holds the pending membership invites.
//
// # Roles
//
// Organization level:
//   - ORG_ADMIN: edit the organization, manage membership, create
//     teams, project groups and registered themes
//   - ORG_FULL_ADMIN: everything ORG_ADMIN can do, plus delete the
//     organization
//
// Sub-entity level (one admin role per kind):
//   - TEAM_ADMIN, PROJECT_GROUP_ADMIN, REGISTERED_THEME_ADMIN
//
// Additional sub-entity vocabularies can be loaded from YAML, see
// ParseVocabularies.
//
// # Membership invites
//
// Invites are issued per email address and live on the organization
// document until accepted or revoked. Issuing a new invite for an
// email supersedes any pending invite for that address. Acceptance
// verifies the accepting user's email, grants the invited role and
// records the organization membership on the user.
//
// # Related Packages
//
//   - pkg/accesscontrol: role assignment engines
//   - pkg/governance: role and permission tables
//   - pkg/users: membership records on user documents
package orgs
