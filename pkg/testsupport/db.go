package testsupport

import (
	"context"
	"testing"

	"github.com/goliatone/go-meta-query/cache"
	"github.com/goliatone/go-meta-query/internal/storage"
	"github.com/goliatone/go-meta-query/meta"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/goliatone/go-meta-query/objectcache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SQLiteConfig returns a storage config for a private in-memory database.
// Each call names a new database so parallel tests never share tables.
func SQLiteConfig() storage.Config {
	return storage.Config{
		Driver:       storage.DriverSQLite,
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}
}

// OpenDB opens a fresh in-memory sqlite database closed at test end.
func OpenDB(t *testing.T, opts ...storage.Option) *bun.DB {
	t.Helper()

	db, err := storage.Open(SQLiteConfig(), opts...)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry(t *testing.T) *metatype.Registry {
	t.Helper()

	types, err := metatype.NewRegistry(metatype.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	if err := types.Bootstrap(metatype.DefaultPlugins()...); err != nil {
		t.Fatalf("failed to register built-in types: %v", err)
	}
	return types
}

// CreateTables creates the meta table of every registered type.
func CreateTables(t *testing.T, db bun.IDB, types *metatype.Registry) {
	t.Helper()

	for _, d := range types.List(metatype.Match{}) {
		if err := storage.CreateTable(context.Background(), db, d); err != nil {
			t.Fatalf("failed to create table for %s: %v", d.ObjectType, err)
		}
	}
}

// Env is a fully wired store over an in-memory database.
type Env struct {
	DB    *bun.DB
	Types *metatype.Registry
	Cache cache.Service
	Store *meta.Store
}

// NewEnv wires a registry with the built-in types, a memory cache and a
// sqlite backed store.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	db := OpenDB(t)
	types := NewRegistry(t)
	CreateTables(t, db, types)

	svc, err := cache.NewService(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create cache service: %v", err)
	}

	store := meta.NewStore(types, storage.New(db), objectcache.New[meta.Entity](svc))
	return &Env{DB: db, Types: types, Cache: svc, Store: store}
}
