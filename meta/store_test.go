package meta_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goliatone/go-meta-query/cache"
	"github.com/goliatone/go-meta-query/internal/storage"
	"github.com/goliatone/go-meta-query/meta"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/goliatone/go-meta-query/objectcache"
	"github.com/goliatone/go-meta-query/pkg/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)

	id, err := env.Store.Create(ctx, "post", meta.Fields{ObjectID: 5, Key: "color", Value: "blue"})
	require.NoError(t, err)

	e, err := env.Store.Resolve(ctx, "post", id)
	require.NoError(t, err)
	assert.Equal(t, meta.Entity{ID: id, ObjectID: 5, ObjectType: "post", Key: "color", Value: "blue"}, e)

	again, err := env.Store.Resolve(ctx, "post", id)
	require.NoError(t, err)
	assert.Equal(t, e, again)

	cached, ok := env.Store.Cache().Get(ctx, "post", id)
	require.True(t, ok, "resolve warms the cache")
	assert.Equal(t, e, cached)
}

func TestStore_CreateDoesNotCacheButBumpsToken(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)
	c := env.Store.Cache()

	before := c.Token(ctx, "post")
	id, err := env.Store.Create(ctx, "post", meta.Fields{ObjectID: 1, Key: "k", Value: "v"})
	require.NoError(t, err)

	_, ok := c.Get(ctx, "post", id)
	assert.False(t, ok)
	assert.Greater(t, c.Token(ctx, "post"), before)
}

func TestStore_UpdateInvalidates(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)
	c := env.Store.Cache()

	id, err := env.Store.Create(ctx, "user", meta.Fields{ObjectID: 3, Key: "nickname", Value: "neo"})
	require.NoError(t, err)

	e, err := env.Store.Resolve(ctx, "user", id)
	require.NoError(t, err)
	token := c.Token(ctx, "user")

	require.NoError(t, env.Store.Update(ctx, &e, meta.Fields{ObjectID: 4, Key: "nickname", Value: "trinity"}))
	assert.Equal(t, "trinity", e.Value, "entity is updated in place")
	assert.Equal(t, uint64(4), e.ObjectID)
	assert.Greater(t, c.Token(ctx, "user"), token)

	got, err := env.Store.Resolve(ctx, "user", id)
	require.NoError(t, err)
	assert.Equal(t, "trinity", got.Value)
	assert.Equal(t, uint64(4), got.ObjectID)
}

func TestStore_UpdateUnchangedStillBumps(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)
	c := env.Store.Cache()

	id, err := env.Store.Create(ctx, "post", meta.Fields{ObjectID: 1, Key: "k", Value: "v"})
	require.NoError(t, err)
	e, err := env.Store.Resolve(ctx, "post", id)
	require.NoError(t, err)

	token := c.Token(ctx, "post")
	require.NoError(t, env.Store.Update(ctx, &e, meta.Fields{ObjectID: 1, Key: "k", Value: "v"}))
	assert.Greater(t, c.Token(ctx, "post"), token)
}

func TestStore_DeleteThenResolveNotFound(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)

	id, err := env.Store.Create(ctx, "comment", meta.Fields{ObjectID: 8, Key: "rating", Value: "5"})
	require.NoError(t, err)
	e, err := env.Store.Resolve(ctx, "comment", id)
	require.NoError(t, err)

	require.NoError(t, env.Store.Delete(ctx, e))

	_, err = env.Store.Resolve(ctx, "comment", id)
	assert.True(t, meta.IsNotFound(err), "expected ErrNotFound, got %v", err)

	assert.ErrorIs(t, env.Store.Delete(ctx, e), meta.ErrNotFound, "second delete matches no row")
}

func TestStore_UpdateDeletedRowNotFound(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)

	id, err := env.Store.Create(ctx, "post", meta.Fields{ObjectID: 5, Key: "color", Value: "blue"})
	require.NoError(t, err)
	e, err := env.Store.Resolve(ctx, "post", id)
	require.NoError(t, err)
	require.NoError(t, env.Store.Delete(ctx, e))

	stale := e
	err = env.Store.Update(ctx, &stale, meta.Fields{ObjectID: 5, Key: "color", Value: "red"})
	assert.ErrorIs(t, err, meta.ErrNotFound)
	assert.Equal(t, e, stale, "entity is left untouched when no row matched")

	_, err = env.Store.Resolve(ctx, "post", id)
	assert.True(t, meta.IsNotFound(err), "expected ErrNotFound, got %v", err)
}

func TestStore_ResolveNotFound(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)

	_, err := env.Store.Resolve(ctx, "post", 0)
	assert.ErrorIs(t, err, meta.ErrNotFound)

	_, err = env.Store.Resolve(ctx, "post", 12345)
	assert.ErrorIs(t, err, meta.ErrNotFound)
}

func TestStore_UnknownType(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)

	_, err := env.Store.Resolve(ctx, "widget", 1)
	assert.ErrorIs(t, err, metatype.ErrUnknownType)

	_, err = env.Store.Create(ctx, "widget", meta.Fields{ObjectID: 1, Key: "k"})
	assert.ErrorIs(t, err, metatype.ErrUnknownType)
	assert.False(t, meta.IsNotFound(err))

	err = env.Store.Delete(ctx, meta.Entity{ID: 1, ObjectType: "widget"})
	assert.ErrorIs(t, err, metatype.ErrUnknownType)
}

func TestStore_InvalidFields(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)

	_, err := env.Store.Create(ctx, "post", meta.Fields{Key: "k"})
	assert.ErrorIs(t, err, meta.ErrInvalidFields)

	_, err = env.Store.Create(ctx, "post", meta.Fields{ObjectID: 1})
	assert.ErrorIs(t, err, meta.ErrInvalidFields)
}

func TestStore_Prime(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewEnv(t)

	ids := testsupport.Seed(t, env.Store, "term", []testsupport.MetaRow{
		{ObjectID: 1, Key: "a", Value: "1"},
		{ObjectID: 1, Key: "b", Value: "2"},
		{ObjectID: 2, Key: "c", Value: "3"},
	})

	require.NoError(t, env.Store.Prime(ctx, "term", append(ids, 999)))

	for _, id := range ids {
		_, ok := env.Store.Cache().Get(ctx, "term", id)
		assert.True(t, ok, "id %d should be primed", id)
	}
	assert.Empty(t, env.Store.Cache().Missing(ctx, "term", ids))
}

func TestStore_StorageFailureWrapped(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqldb.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT").WillReturnError(boom)

	db := storage.Wrap(sqldb, storage.Config{Driver: storage.DriverPostgres})
	svc, err := cache.NewService(cache.DefaultConfig())
	require.NoError(t, err)

	store := meta.NewStore(testsupport.NewRegistry(t), storage.New(db), objectcache.New[meta.Entity](svc))

	_, err = store.Resolve(context.Background(), "post", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom, "collaborator error stays reachable")
	assert.False(t, meta.IsNotFound(err))

	var storageErr *meta.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "post", storageErr.ObjectType)
	assert.Equal(t, "resolve", storageErr.Op)

	assert.NoError(t, mock.ExpectationsWereMet())
}
