package apierror

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err    *Error
		name   string
		status int
	}{
		{NotFound(), "NotFound", http.StatusNotFound},
		{InvalidRole("SUPER_ADMIN"), "InvalidRole", http.StatusBadRequest},
		{InvalidEmailAddress(), "InvalidEmailAddress", http.StatusBadRequest},
		{InviteEmailMismatch(), "OrganizationAcceptInviteWithDifferentEmailAddress", http.StatusBadRequest},
		{RoleAlreadyExists(), "OrganizationRoleAlreadyExists", http.StatusBadRequest},
		{Forbidden(), "Forbidden", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, tc.err.Name)
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Contains(t, tc.err.Error(), tc.name)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound()))
	assert.True(t, IsNotFound(fmt.Errorf("lookup failed: %w", NotFound())))
	assert.False(t, IsNotFound(InvalidRole("x")))
	assert.False(t, IsNotFound(fmt.Errorf("plain error")))
	assert.False(t, IsNotFound(nil))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(NotFound()))
	assert.Equal(t, http.StatusBadRequest, StatusOf(fmt.Errorf("wrapped: %w", InvalidRole("x"))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("boom")))
}

func TestForbiddenMessageDoesNotLeakExistence(t *testing.T) {
	// The guard denial message is fixed and independent of the object.
	assert.Equal(t, "Please contact the organization administrator!", Forbidden().Message)
}
