// Package apierror defines the typed errors surfaced across the
// authorization engine's public boundary. Every error carries a stable
// name and an HTTP-equivalent status so callers (and the HTTP layer)
// can map failures without string matching.
package apierror

import (
	"errors"
	"net/http"
)

// Error is a tagged error with an HTTP-equivalent status code.
type Error struct {
	Name    string `json:"error"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Name + ": " + e.Message
}

// NotFound indicates the referenced object, sub-object, invite or
// token does not exist.
func NotFound() *Error {
	return &Error{
		Name:    "NotFound",
		Status:  http.StatusNotFound,
		Message: "the requested object does not exist",
	}
}

// InvalidRole indicates a role outside the entity's declared role
// vocabulary.
func InvalidRole(role string) *Error {
	return &Error{
		Name:    "InvalidRole",
		Status:  http.StatusBadRequest,
		Message: "role " + role + " is not a valid role for this entity",
	}
}

// InvalidEmailAddress indicates a missing or malformed email on
// invite creation.
func InvalidEmailAddress() *Error {
	return &Error{
		Name:    "InvalidEmailAddress",
		Status:  http.StatusBadRequest,
		Message: "a valid email address is required",
	}
}

// InviteEmailMismatch indicates the accepting principal's email does
// not match the invited email.
func InviteEmailMismatch() *Error {
	return &Error{
		Name:    "OrganizationAcceptInviteWithDifferentEmailAddress",
		Status:  http.StatusBadRequest,
		Message: "the invite was issued for a different email address",
	}
}

// RoleAlreadyExists indicates the principal already effectively holds
// the role the invite would grant.
func RoleAlreadyExists() *Error {
	return &Error{
		Name:    "OrganizationRoleAlreadyExists",
		Status:  http.StatusBadRequest,
		Message: "the user already holds this organization role",
	}
}

// Forbidden is produced only by route guards. The message is
// deliberately vague so a denial never reveals whether the object
// exists.
func Forbidden() *Error {
	return &Error{
		Name:    "Forbidden",
		Status:  http.StatusForbidden,
		Message: "Please contact the organization administrator!",
	}
}

// IsNotFound reports whether err is (or wraps) a NotFound error.
func IsNotFound(err error) bool {
	return nameOf(err) == "NotFound"
}

// StatusOf returns the HTTP-equivalent status for err, or 500 when err
// is not a tagged error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

func nameOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Name
	}
	return ""
}
