package orgs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/auth"
	"github.com/gatehouse-dev/gatehouse/pkg/governance"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

func inviteFixture(t *testing.T) (*fixture, *Organization, *users.User) {
	t.Helper()
	f := newFixture(t)
	creator := f.createUser(t, "alba", "alba@example.com")
	org, err := f.service.CreateOrganization(context.Background(), "Acme", creator.ID)
	require.NoError(t, err)
	return f, org, creator
}

func assertErrorName(t *testing.T, err error, name string) {
	t.Helper()
	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr), "expected api error, got %v", err)
	assert.Equal(t, name, apiErr.Name)
}

func TestService_AddMembershipInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("issues an invite", func(t *testing.T) {
		f, org, _ := inviteFixture(t)

		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)
		assert.NotEmpty(t, invite.ID)
		assert.True(t, strings.HasPrefix(invite.Token, "gh_"))
		assert.False(t, invite.CreatedAt.IsZero())

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, loaded.MembershipInvites, 1)
		assert.Equal(t, invite.ID, loaded.MembershipInvites[0].ID)
	})

	t.Run("plaintext token is never persisted", func(t *testing.T) {
		f, org, _ := inviteFixture(t)

		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, loaded.MembershipInvites, 1)
		assert.Empty(t, loaded.MembershipInvites[0].Token)
		assert.Equal(t, auth.NewTokenGenerator().HashToken(invite.Token), loaded.MembershipInvites[0].TokenHash)

		doc, err := json.Marshal(loaded)
		require.NoError(t, err)
		assert.NotContains(t, string(doc), invite.Token)
	})

	t.Run("rejects an invalid email", func(t *testing.T) {
		f, org, _ := inviteFixture(t)

		for _, email := range []string{"", "not-an-email", "spaces in@example.com"} {
			_, err := f.service.AddMembershipInvite(ctx, org.ID, email, RoleOrgAdmin)
			assertErrorName(t, err, "InvalidEmailAddress")
		}
	})

	t.Run("rejects a role outside the organization vocabulary", func(t *testing.T) {
		f, org, _ := inviteFixture(t)

		_, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleTeamAdmin)
		assertErrorName(t, err, "InvalidRole")

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Empty(t, loaded.MembershipInvites)
	})

	t.Run("supersedes a pending invite for the same email", func(t *testing.T) {
		f, org, _ := inviteFixture(t)

		first, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)
		second, err := f.service.AddMembershipInvite(ctx, org.ID, "BO@example.com", RoleOrgFullAdmin)
		require.NoError(t, err)

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, loaded.MembershipInvites, 1)
		assert.Equal(t, second.ID, loaded.MembershipInvites[0].ID)

		// The superseded invite can no longer be accepted.
		invitee := f.createUser(t, "bo", "bo@example.com")
		err = f.service.AcceptMembershipInvite(ctx, org.ID, first.Token, invitee)
		assert.True(t, apierror.IsNotFound(err))
	})

	t.Run("invites for distinct emails coexist", func(t *testing.T) {
		f, org, _ := inviteFixture(t)

		_, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)
		_, err = f.service.AddMembershipInvite(ctx, org.ID, "cyn@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.MembershipInvites, 2)
	})

	t.Run("unknown organization", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.AddMembershipInvite(ctx, "missing", "bo@example.com", RoleOrgAdmin)
		assert.True(t, apierror.IsNotFound(err))
	})
}

func TestService_RemoveMembershipInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes a pending invite", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		require.NoError(t, f.service.RemoveMembershipInvite(ctx, org.ID, invite.ID))

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Empty(t, loaded.MembershipInvites)
	})

	t.Run("unknown invite id", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		err := f.service.RemoveMembershipInvite(ctx, org.ID, "missing")
		assert.True(t, apierror.IsNotFound(err))
	})
}

func TestService_AcceptMembershipInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("grants membership and the invited role", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invitee := f.createUser(t, "bo", "bo@example.com")
		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		require.NoError(t, f.service.AcceptMembershipInvite(ctx, org.ID, invite.Token, invitee))

		principal := f.principalOf(t, invitee.ID)
		assert.True(t, principal.IsMemberOf(org.ID))

		ok, err := f.service.Engine().IsAuthorized(ctx, org.ID, []governance.Role{RoleOrgAdmin}, principal)
		require.NoError(t, err)
		assert.True(t, ok)

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Empty(t, loaded.MembershipInvites)
	})

	t.Run("email comparison is case-insensitive", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invitee := f.createUser(t, "bo", "Bo@Example.COM")
		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		assert.NoError(t, f.service.AcceptMembershipInvite(ctx, org.ID, invite.Token, invitee))
	})

	t.Run("rejects a different email address", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		stranger := f.createUser(t, "cyn", "cyn@example.com")
		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		err = f.service.AcceptMembershipInvite(ctx, org.ID, invite.Token, stranger)
		assertErrorName(t, err, "OrganizationAcceptInviteWithDifferentEmailAddress")

		loaded, err := f.service.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.MembershipInvites, 1)
	})

	t.Run("rejects acceptance when the role is already held", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invitee := f.createUser(t, "bo", "bo@example.com")

		first, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)
		require.NoError(t, f.service.AcceptMembershipInvite(ctx, org.ID, first.Token, invitee))

		second, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		invitee, err = f.users.Get(ctx, invitee.ID)
		require.NoError(t, err)
		err = f.service.AcceptMembershipInvite(ctx, org.ID, second.Token, invitee)
		assertErrorName(t, err, "OrganizationRoleAlreadyExists")
	})

	t.Run("role-less invite grants bare membership", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invitee := f.createUser(t, "bo", "bo@example.com")
		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", "")
		require.NoError(t, err)

		require.NoError(t, f.service.AcceptMembershipInvite(ctx, org.ID, invite.Token, invitee))

		principal := f.principalOf(t, invitee.ID)
		assert.True(t, principal.IsMemberOf(org.ID))

		// Membership only, no explicit assignment.
		acl, err := f.service.Engine().ACLOf(ctx, org.ID)
		require.NoError(t, err)
		for _, assignment := range acl {
			assert.NotEqual(t, invitee.ID, assignment.UserID)
		}
	})

	t.Run("role-less invite skips the already-held check", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invitee := f.createUser(t, "bo", "bo@example.com")

		first, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)
		require.NoError(t, f.service.AcceptMembershipInvite(ctx, org.ID, first.Token, invitee))

		second, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", "")
		require.NoError(t, err)

		invitee, err = f.users.Get(ctx, invitee.ID)
		require.NoError(t, err)
		assert.NoError(t, f.service.AcceptMembershipInvite(ctx, org.ID, second.Token, invitee))
	})

	t.Run("accepting a consumed invite", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invitee := f.createUser(t, "bo", "bo@example.com")
		invite, err := f.service.AddMembershipInvite(ctx, org.ID, "bo@example.com", RoleOrgAdmin)
		require.NoError(t, err)

		require.NoError(t, f.service.AcceptMembershipInvite(ctx, org.ID, invite.Token, invitee))
		err = f.service.AcceptMembershipInvite(ctx, org.ID, invite.Token, invitee)
		assert.True(t, apierror.IsNotFound(err))
	})

	t.Run("unknown token", func(t *testing.T) {
		f, org, _ := inviteFixture(t)
		invitee := f.createUser(t, "bo", "bo@example.com")
		err := f.service.AcceptMembershipInvite(ctx, org.ID, "missing", invitee)
		assert.True(t, apierror.IsNotFound(err))
	})

	t.Run("unknown organization", func(t *testing.T) {
		f := newFixture(t)
		invitee := f.createUser(t, "bo", "bo@example.com")
		err := f.service.AcceptMembershipInvite(ctx, "missing", "invite", invitee)
		assert.True(t, apierror.IsNotFound(err))
	})
}
