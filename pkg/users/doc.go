// Package users stores user records and their organization
// memberships, and resolves bearer tokens to principals.
//
// Memberships are the source of the principal's team ids used by
// authorization checks: a user belongs to organizations, and within
// each organization to zero or more teams. Membership mutations are
// idempotent so invite acceptance and administrative adds can race
// safely.
package users
