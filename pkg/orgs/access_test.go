package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
)

func TestGovernance(t *testing.T) {
	table := Governance()

	t.Run("only full admin may delete", func(t *testing.T) {
		assert.Equal(t, []governance.Role{RoleOrgFullAdmin}, table.RolesFor(PermDeleteOrganization))
	})

	t.Run("both admin roles may edit", func(t *testing.T) {
		assert.ElementsMatch(t, []governance.Role{RoleOrgAdmin, RoleOrgFullAdmin}, table.RolesFor(PermEditOrganization))
	})

	t.Run("sub-entity roles are not organization roles", func(t *testing.T) {
		assert.False(t, table.HasRole(RoleTeamAdmin))
	})
}

func TestSubEntityRegistry(t *testing.T) {
	registry := SubEntityRegistry()
	require.Len(t, registry, 3)

	for field, cfg := range registry {
		assert.NotNil(t, cfg.Governance, string(field))
		assert.NotNil(t, cfg.DefaultRoleMatcher, string(field))
	}

	assert.True(t, registry[FieldTeams].Governance.HasRole(RoleTeamAdmin))
	assert.True(t, registry[FieldProjectGroups].Governance.HasRole(RoleProjectGroupAdmin))
	assert.True(t, registry[FieldRegisteredThemes].Governance.HasRole(RoleRegisteredThemeAdmin))
}

func TestMembershipMatcher(t *testing.T) {
	ctx := context.Background()

	principal := &accesscontrol.Principal{
		ID: "user-1",
		OrganizationMemberships: []accesscontrol.OrganizationMembership{
			{OrganizationID: "org-1"},
		},
	}

	ok, err := MembershipMatcher(ctx, principal, "org-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MembershipMatcher(ctx, principal, "org-2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = MembershipMatcher(ctx, nil, "org-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseVocabularies(t *testing.T) {
	t.Run("parses sub-entity vocabularies", func(t *testing.T) {
		vocabularies, err := ParseVocabularies([]byte(`
subEntities:
  environments:
    roles:
      ENVIRONMENT_ADMIN:
        - EDIT_ENVIRONMENT
        - DELETE_ENVIRONMENT
      ENVIRONMENT_VIEWER: []
  pipelines:
    roles:
      PIPELINE_ADMIN:
        - EDIT_PIPELINE
`))
		require.NoError(t, err)
		require.Len(t, vocabularies, 2)

		environments := vocabularies["environments"]
		require.NotNil(t, environments.Governance)
		assert.True(t, environments.Governance.HasRole("ENVIRONMENT_ADMIN"))
		assert.True(t, environments.Governance.HasRole("ENVIRONMENT_VIEWER"))
		assert.NotNil(t, environments.DefaultRoleMatcher)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := ParseVocabularies([]byte("subEntities: ["))
		assert.Error(t, err)
	})

	t.Run("rejects a sub-entity without roles", func(t *testing.T) {
		_, err := ParseVocabularies([]byte("subEntities:\n  environments:\n    roles: {}\n"))
		assert.Error(t, err)
	})

	t.Run("empty input yields no vocabularies", func(t *testing.T) {
		vocabularies, err := ParseVocabularies(nil)
		require.NoError(t, err)
		assert.Empty(t, vocabularies)
	})
}
