package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/pkg/accesscontrol"
	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/docstore"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

type fixture struct {
	service *Service
	users   *users.Store
	store   docstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	logger := observability.NewNopLogger()
	userStore := users.NewStore(store, logger)
	return &fixture{
		service: NewService(store, userStore, logger, nil),
		users:   userStore,
		store:   store,
	}
}

func (f *fixture) createUser(t *testing.T, username, email string) *users.User {
	t.Helper()
	user := &users.User{Username: username, Email: email}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) principalOf(t *testing.T, userID string) *accesscontrol.Principal {
	t.Helper()
	user, err := f.users.Get(context.Background(), userID)
	require.NoError(t, err)
	return user.Principal()
}

func TestService_CreateOrganization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")

	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, org.ID)
	assert.Equal(t, "Acme", org.Name)

	t.Run("creator holds full admin", func(t *testing.T) {
		ok, err := f.service.Engine().IsAuthorized(ctx, org.ID, []governance.Role{RoleOrgFullAdmin}, f.principalOf(t, creator.ID))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("creator is a member", func(t *testing.T) {
		assert.True(t, f.principalOf(t, creator.ID).IsMemberOf(org.ID))
	})
}

func TestService_GetOrganization(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.GetOrganization(context.Background(), "missing")
	assert.True(t, apierror.IsNotFound(err))
}

func TestService_RenameOrganization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.RenameOrganization(ctx, org.ID, "Acme Corp"))

	renamed, err := f.service.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", renamed.Name)

	t.Run("rename preserves the access control list", func(t *testing.T) {
		assert.Len(t, renamed.AccessControlList, 1)
	})

	t.Run("unknown organization", func(t *testing.T) {
		assert.True(t, apierror.IsNotFound(f.service.RenameOrganization(ctx, "missing", "x")))
	})
}

func TestService_DeleteOrganization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteOrganization(ctx, org.ID))

	_, err = f.service.GetOrganization(ctx, org.ID)
	assert.True(t, apierror.IsNotFound(err))

	t.Run("role assignments disappear with the document", func(t *testing.T) {
		ok, err := f.service.Engine().IsAuthorized(ctx, org.ID, []governance.Role{RoleOrgFullAdmin}, f.principalOf(t, creator.ID))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("deleting twice", func(t *testing.T) {
		assert.True(t, apierror.IsNotFound(f.service.DeleteOrganization(ctx, org.ID)))
	})
}

func TestService_AddRemoveUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	member := f.createUser(t, "bo", "bo@example.com")
	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.AddUser(ctx, org.ID, member.ID))
	require.NoError(t, f.service.AddUser(ctx, org.ID, member.ID))
	assert.True(t, f.principalOf(t, member.ID).IsMemberOf(org.ID))

	t.Run("membership grants default access", func(t *testing.T) {
		ok, err := f.service.Engine().IsAuthorized(ctx, org.ID, nil, f.principalOf(t, member.ID))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown organization", func(t *testing.T) {
		assert.True(t, apierror.IsNotFound(f.service.AddUser(ctx, "missing", member.ID)))
	})

	t.Run("remove clears membership and roles", func(t *testing.T) {
		require.NoError(t, f.service.Engine().SetUserRole(ctx, org.ID, RoleOrgAdmin, member.ID))
		require.NoError(t, f.service.RemoveUser(ctx, org.ID, member.ID))

		principal := f.principalOf(t, member.ID)
		assert.False(t, principal.IsMemberOf(org.ID))

		ok, err := f.service.Engine().IsAuthorized(ctx, org.ID, nil, principal)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestService_SubEntities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)

	team, err := f.service.CreateTeam(ctx, org.ID, "Platform")
	require.NoError(t, err)
	group, err := f.service.CreateProjectGroup(ctx, org.ID, "Websites")
	require.NoError(t, err)
	theme, err := f.service.CreateRegisteredTheme(ctx, org.ID, "Dark")
	require.NoError(t, err)

	loaded, err := f.service.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Teams, 1)
	assert.Equal(t, team.ID, loaded.Teams[0].ID)
	require.Len(t, loaded.ProjectGroups, 1)
	assert.Equal(t, group.ID, loaded.ProjectGroups[0].ID)
	require.Len(t, loaded.RegisteredThemes, 1)
	assert.Equal(t, theme.ID, loaded.RegisteredThemes[0].ID)

	t.Run("nested role assignment on a created team", func(t *testing.T) {
		admin := f.createUser(t, "cyn", "cyn@example.com")
		require.NoError(t, f.service.NestedEngine().SetNestedUserRole(ctx, org.ID, FieldTeams, team.ID, RoleTeamAdmin, admin.ID))

		ok, err := f.service.NestedEngine().IsAuthorizedNestedDoc(ctx, org.ID, FieldTeams, team.ID, []governance.Role{RoleTeamAdmin}, f.principalOf(t, admin.ID))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := f.service.CreateTeam(ctx, "missing", "Platform")
		assert.True(t, apierror.IsNotFound(err))
	})
}

func TestService_RenameTeam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)

	team, err := f.service.CreateTeam(ctx, org.ID, "Core")
	require.NoError(t, err)
	admin := f.createUser(t, "cyn", "cyn@example.com")
	require.NoError(t, f.service.NestedEngine().SetNestedUserRole(ctx, org.ID, FieldTeams, team.ID, RoleTeamAdmin, admin.ID))

	require.NoError(t, f.service.RenameTeam(ctx, org.ID, team.ID, "Platform"))

	loaded, err := f.service.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Teams, 1)
	assert.Equal(t, "Platform", loaded.Teams[0].Name)

	// The team's role assignments survive the rename.
	ok, err := f.service.NestedEngine().IsAuthorizedNestedDoc(ctx, org.ID, FieldTeams, team.ID, []governance.Role{RoleTeamAdmin}, f.principalOf(t, admin.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("unknown team", func(t *testing.T) {
		err := f.service.RenameTeam(ctx, org.ID, "missing", "Anything")
		assert.True(t, apierror.IsNotFound(err))
	})

	t.Run("unknown organization", func(t *testing.T) {
		err := f.service.RenameTeam(ctx, "missing", team.ID, "Anything")
		assert.True(t, apierror.IsNotFound(err))
	})
}

func TestService_CreateSubEntity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)

	t.Run("unregistered field", func(t *testing.T) {
		_, err := f.service.CreateSubEntity(ctx, org.ID, "environments", "staging")
		assert.True(t, apierror.IsNotFound(err))
	})

	t.Run("registered custom field", func(t *testing.T) {
		vocabularies, err := ParseVocabularies([]byte(`
subEntities:
  environments:
    roles:
      ENVIRONMENT_ADMIN:
        - EDIT_ENVIRONMENT
`))
		require.NoError(t, err)
		for field, cfg := range vocabularies {
			f.service.RegisterSubEntity(field, cfg)
		}

		entity, err := f.service.CreateSubEntity(ctx, org.ID, "environments", "staging")
		require.NoError(t, err)

		require.NoError(t, f.service.NestedEngine().SetNestedUserRole(ctx, org.ID, "environments", entity.ID, "ENVIRONMENT_ADMIN", creator.ID))

		ok, err := f.service.NestedEngine().IsAuthorizedNestedDoc(ctx, org.ID, "environments", entity.ID, []governance.Role{"ENVIRONMENT_ADMIN"}, f.principalOf(t, creator.ID))
		require.NoError(t, err)
		assert.True(t, ok)

		// Unrelated updates leave the custom sub-collection and its
		// assignments intact.
		require.NoError(t, f.service.RenameOrganization(ctx, org.ID, "Acme Corp"))
		_, err = f.service.CreateTeam(ctx, org.ID, "Platform")
		require.NoError(t, err)

		ok, err = f.service.NestedEngine().IsAuthorizedNestedDoc(ctx, org.ID, "environments", entity.ID, []governance.Role{"ENVIRONMENT_ADMIN"}, f.principalOf(t, creator.ID))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestService_TeamMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	member := f.createUser(t, "bo", "bo@example.com")
	org, err := f.service.CreateOrganization(ctx, "Acme", creator.ID)
	require.NoError(t, err)
	team, err := f.service.CreateTeam(ctx, org.ID, "Platform")
	require.NoError(t, err)

	require.NoError(t, f.service.AddUserToTeam(ctx, org.ID, team.ID, member.ID))
	assert.Contains(t, f.principalOf(t, member.ID).TeamIDs(), team.ID)

	t.Run("team role reaches members", func(t *testing.T) {
		require.NoError(t, f.service.Engine().SetTeamRole(ctx, org.ID, RoleOrgAdmin, team.ID))

		ok, err := f.service.Engine().IsAuthorized(ctx, org.ID, []governance.Role{RoleOrgAdmin}, f.principalOf(t, member.ID))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown team", func(t *testing.T) {
		assert.True(t, apierror.IsNotFound(f.service.AddUserToTeam(ctx, org.ID, "missing", member.ID)))
	})

	t.Run("remove from team", func(t *testing.T) {
		require.NoError(t, f.service.RemoveUserFromTeam(ctx, org.ID, team.ID, member.ID))
		assert.NotContains(t, f.principalOf(t, member.ID).TeamIDs(), team.ID)
	})
}
