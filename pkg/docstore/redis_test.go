package docstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "organizations", "org-1", []byte(`{"name":"acme"}`)))

	doc, err := store.FindOne(ctx, "organizations", "org-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"acme"}`, string(doc))

	_, err = store.FindOne(ctx, "organizations", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreFindOneAndUpdate(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "organizations", "org-1", []byte(`{"v":1}`)))

	updated, err := store.FindOneAndUpdate(ctx, "organizations", "org-1", func(doc []byte) ([]byte, error) {
		assert.JSONEq(t, `{"v":1}`, string(doc))
		return []byte(`{"v":2}`), nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(updated))

	doc, err := store.FindOne(ctx, "organizations", "org-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(doc))

	t.Run("missing document", func(t *testing.T) {
		_, err := store.FindOneAndUpdate(ctx, "organizations", "missing", func(doc []byte) ([]byte, error) {
			return doc, nil
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRedisStoreDelete(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "organizations", "org-1", []byte(`{}`)))
	require.NoError(t, store.Delete(ctx, "organizations", "org-1"))
	assert.ErrorIs(t, store.Delete(ctx, "organizations", "org-1"), ErrNotFound)
}

func TestRedisStoreHealthCheck(t *testing.T) {
	store := newTestRedisStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}
