package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/pkg/governance"
)

func TestACL_WithSubjectRole(t *testing.T) {
	t.Run("adds a fresh assignment", func(t *testing.T) {
		acl := ACL{}.WithSubjectRole(UserSubject("user-1"), "ADMIN")

		require.Len(t, acl, 1)
		assert.Equal(t, "user-1", acl[0].UserID)
		assert.Empty(t, acl[0].TeamID)
		assert.Equal(t, governance.Role("ADMIN"), acl[0].Role)
		assert.NotEmpty(t, acl[0].ID)
	})

	t.Run("replaces the prior assignment for the same subject", func(t *testing.T) {
		acl := ACL{}.
			WithSubjectRole(UserSubject("user-1"), "ADMIN").
			WithSubjectRole(UserSubject("user-1"), "VIEWER")

		require.Len(t, acl, 1)
		assert.Equal(t, governance.Role("VIEWER"), acl[0].Role)
	})

	t.Run("distinct subjects accumulate", func(t *testing.T) {
		acl := ACL{}.
			WithSubjectRole(UserSubject("user-1"), "ADMIN").
			WithSubjectRole(UserSubject("user-2"), "ADMIN").
			WithSubjectRole(TeamSubject("team-1"), "ADMIN")

		assert.Len(t, acl, 3)
	})

	t.Run("a user and a team with the same id are distinct subjects", func(t *testing.T) {
		acl := ACL{}.
			WithSubjectRole(UserSubject("shared-id"), "ADMIN").
			WithSubjectRole(TeamSubject("shared-id"), "VIEWER")

		assert.Len(t, acl, 2)
	})
}

func TestACL_WithoutSubject(t *testing.T) {
	acl := ACL{}.
		WithSubjectRole(UserSubject("user-1"), "ADMIN").
		WithSubjectRole(TeamSubject("team-1"), "VIEWER")

	t.Run("removes the matching assignment", func(t *testing.T) {
		out := acl.WithoutSubject(UserSubject("user-1"))
		require.Len(t, out, 1)
		assert.Equal(t, "team-1", out[0].TeamID)
	})

	t.Run("removing an absent subject is a no-op", func(t *testing.T) {
		out := acl.WithoutSubject(UserSubject("nobody"))
		assert.Len(t, out, 2)
	})
}

func TestACL_HasRoleFor(t *testing.T) {
	acl := ACL{}.
		WithSubjectRole(UserSubject("user-1"), "ADMIN").
		WithSubjectRole(TeamSubject("team-1"), "VIEWER")

	t.Run("user assignment matches", func(t *testing.T) {
		assert.True(t, acl.HasRoleFor([]governance.Role{"ADMIN"}, "user-1", nil))
	})

	t.Run("team assignment matches through membership", func(t *testing.T) {
		assert.True(t, acl.HasRoleFor([]governance.Role{"VIEWER"}, "user-2", []string{"team-1"}))
	})

	t.Run("role must be in the possible set", func(t *testing.T) {
		assert.False(t, acl.HasRoleFor([]governance.Role{"VIEWER"}, "user-1", nil))
	})

	t.Run("no assignment no access", func(t *testing.T) {
		assert.False(t, acl.HasRoleFor([]governance.Role{"ADMIN"}, "user-2", []string{"team-2"}))
	})
}

func TestACL_HasAnyFor(t *testing.T) {
	acl := ACL{}.WithSubjectRole(TeamSubject("team-1"), "VIEWER")

	assert.True(t, acl.HasAnyFor("anyone", []string{"team-1"}))
	assert.False(t, acl.HasAnyFor("anyone", []string{"team-2"}))
	assert.False(t, ACL{}.HasAnyFor("anyone", []string{"team-1"}))
}

func TestPrincipal_TeamIDs(t *testing.T) {
	principal := &Principal{
		ID: "user-1",
		OrganizationMemberships: []OrganizationMembership{
			{OrganizationID: "org-1", Teams: []string{"team-a", "team-b"}},
			{OrganizationID: "org-2", Teams: []string{"team-b", "team-c"}},
		},
	}

	assert.ElementsMatch(t, []string{"team-a", "team-b", "team-c"}, principal.TeamIDs())
}

func TestPrincipal_IsMemberOf(t *testing.T) {
	principal := &Principal{
		ID: "user-1",
		OrganizationMemberships: []OrganizationMembership{
			{OrganizationID: "org-1"},
		},
	}

	assert.True(t, principal.IsMemberOf("org-1"))
	assert.False(t, principal.IsMemberOf("org-2"))
}
