package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/pkg/apierror"
	"github.com/gatehouse-dev/gatehouse/pkg/docstore"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return NewStore(store, observability.NewNopLogger())
}

func createTestUser(t *testing.T, store *Store) *User {
	t.Helper()
	user := &User{Username: "jan", Email: "jan@example.com"}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := createTestUser(t, store)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	loaded, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, loaded.Username)
	assert.Equal(t, user.Email, loaded.Email)

	_, err = store.Get(ctx, "missing")
	assert.True(t, apierror.IsNotFound(err))
}

func TestStore_Tokens(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	user := createTestUser(t, store)

	token, err := store.IssueToken(ctx, user.ID)
	require.NoError(t, err)

	t.Run("resolves the plaintext token", func(t *testing.T) {
		found, err := store.FindByToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("rejects malformed tokens", func(t *testing.T) {
		_, err := store.FindByToken(ctx, "not-a-token")
		assert.True(t, apierror.IsNotFound(err))
	})

	t.Run("rejects unknown tokens", func(t *testing.T) {
		_, err := store.FindByTokenHash(ctx, "0000000000000000")
		assert.True(t, apierror.IsNotFound(err))
	})

	t.Run("reissuing invalidates the previous token", func(t *testing.T) {
		fresh, err := store.IssueToken(ctx, user.ID)
		require.NoError(t, err)

		_, err = store.FindByToken(ctx, token)
		assert.True(t, apierror.IsNotFound(err))

		found, err := store.FindByToken(ctx, fresh)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("issuing for an unknown user", func(t *testing.T) {
		_, err := store.IssueToken(ctx, "missing")
		assert.True(t, apierror.IsNotFound(err))
	})
}

func TestStore_Memberships(t *testing.T) {
	ctx := context.Background()

	t.Run("add membership is idempotent", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store)

		require.NoError(t, store.AddOrganizationMembership(ctx, user.ID, "org-1"))
		require.NoError(t, store.AddOrganizationMembership(ctx, user.ID, "org-1"))

		loaded, err := store.Get(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, loaded.OrganizationMemberships, 1)
		assert.Equal(t, "org-1", loaded.OrganizationMemberships[0].OrganizationID)
	})

	t.Run("add team creates the membership when absent", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store)

		require.NoError(t, store.AddTeamToMembership(ctx, user.ID, "org-1", "team-a"))
		require.NoError(t, store.AddTeamToMembership(ctx, user.ID, "org-1", "team-a"))
		require.NoError(t, store.AddTeamToMembership(ctx, user.ID, "org-1", "team-b"))

		loaded, err := store.Get(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, loaded.OrganizationMemberships, 1)
		assert.Equal(t, []string{"team-a", "team-b"}, loaded.OrganizationMemberships[0].Teams)
	})

	t.Run("remove team", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store)

		require.NoError(t, store.AddTeamToMembership(ctx, user.ID, "org-1", "team-a"))
		require.NoError(t, store.RemoveTeamFromMembership(ctx, user.ID, "org-1", "team-a"))
		require.NoError(t, store.RemoveTeamFromMembership(ctx, user.ID, "org-1", "team-z"))

		loaded, err := store.Get(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, loaded.OrganizationMemberships, 1)
		assert.Empty(t, loaded.OrganizationMemberships[0].Teams)
	})

	t.Run("remove membership", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store)

		require.NoError(t, store.AddTeamToMembership(ctx, user.ID, "org-1", "team-a"))
		require.NoError(t, store.AddOrganizationMembership(ctx, user.ID, "org-2"))
		require.NoError(t, store.RemoveOrganizationMembership(ctx, user.ID, "org-1"))

		loaded, err := store.Get(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, loaded.OrganizationMemberships, 1)
		assert.Equal(t, "org-2", loaded.OrganizationMemberships[0].OrganizationID)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	user := createTestUser(t, store)

	token, err := store.IssueToken(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, user.ID))

	_, err = store.Get(ctx, user.ID)
	assert.True(t, apierror.IsNotFound(err))

	_, err = store.FindByToken(ctx, token)
	assert.True(t, apierror.IsNotFound(err))

	assert.True(t, apierror.IsNotFound(store.Delete(ctx, user.ID)))
}

func TestUser_Principal(t *testing.T) {
	user := createTestUser(t, newTestStore(t))
	user.OrganizationMemberships = nil

	principal := user.Principal()
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, user.Email, principal.Email)
	assert.Empty(t, principal.TeamIDs())
}
