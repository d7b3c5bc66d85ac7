package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goliatone/go-meta-query/metatype"
	"github.com/goliatone/go-meta-query/objectcache"
	"go.uber.org/zap"
)

// Storage is the relational collaborator behind a Store. Identifiers come
// from the descriptor; every value is bound.
type Storage interface {
	// FetchRow returns an error matching sql.ErrNoRows when id has no row.
	FetchRow(ctx context.Context, d *metatype.Descriptor, id uint64) (map[string]any, error)
	FetchRows(ctx context.Context, d *metatype.Descriptor, ids []uint64) ([]map[string]any, error)
	Insert(ctx context.Context, d *metatype.Descriptor, values map[string]any) (uint64, error)
	Update(ctx context.Context, d *metatype.Descriptor, id uint64, values map[string]any) (int64, error)
	Delete(ctx context.Context, d *metatype.Descriptor, id uint64) (int64, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store resolves entities through the object cache and writes through to
// storage. Every write invalidates the entity and the type's query results.
type Store struct {
	types   *metatype.Registry
	storage Storage
	cache   *objectcache.Cache[Entity]
	logger  *zap.Logger
}

// NewStore creates a Store.
func NewStore(types *metatype.Registry, storage Storage, cache *objectcache.Cache[Entity], opts ...Option) *Store {
	s := &Store{
		types:   types,
		storage: storage,
		cache:   cache,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Types returns the registry the store resolves descriptors from.
func (s *Store) Types() *metatype.Registry {
	return s.types
}

// Cache returns the entity cache.
func (s *Store) Cache() *objectcache.Cache[Entity] {
	return s.cache
}

// Resolve returns the entity with id, from cache when possible.
func (s *Store) Resolve(ctx context.Context, objectType string, id uint64) (Entity, error) {
	d, err := s.types.Lookup(objectType)
	if err != nil {
		return Entity{}, err
	}
	if id == 0 {
		return Entity{}, ErrNotFound
	}

	if e, ok := s.cache.Get(ctx, objectType, id); ok {
		return e, nil
	}

	row, err := s.storage.FetchRow(ctx, d, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, &StorageError{ObjectType: objectType, Op: "resolve", Err: err}
	}

	e, err := FromRow(d, row)
	if err != nil {
		return Entity{}, err
	}

	s.cache.Add(ctx, objectType, id, e)
	return e, nil
}

// Create inserts a row and returns its id. The new row is not cached; the
// type token is bumped so cached query results pick it up.
func (s *Store) Create(ctx context.Context, objectType string, f Fields) (uint64, error) {
	d, err := s.types.Lookup(objectType)
	if err != nil {
		return 0, err
	}
	if err := f.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}

	id, err := s.storage.Insert(ctx, d, f.Row(d))
	if err != nil {
		return 0, &StorageError{ObjectType: objectType, Op: "create", Err: err}
	}

	s.cache.Bump(ctx, objectType)
	s.logger.Debug("meta created", zap.String("object_type", objectType), zap.Uint64("id", id))
	return id, nil
}

// Update writes all mutable fields of e, even when unchanged, and updates e
// in place on success. ErrNotFound is returned when the row is gone; the
// cache is invalidated either way.
func (s *Store) Update(ctx context.Context, e *Entity, f Fields) error {
	if e == nil || e.ID == 0 {
		return ErrNotFound
	}
	d, err := s.types.Lookup(e.ObjectType)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}

	n, err := s.storage.Update(ctx, d, e.ID, f.Row(d))
	if err != nil {
		return &StorageError{ObjectType: e.ObjectType, Op: "update", Err: err}
	}
	if n == 0 {
		s.cache.Invalidate(ctx, e.ObjectType, e.ID)
		return ErrNotFound
	}

	e.ObjectID = f.ObjectID
	e.Key = f.Key
	e.Value = f.Value

	s.cache.Invalidate(ctx, e.ObjectType, e.ID)
	s.cache.Set(ctx, e.ObjectType, e.ID, *e)
	s.logger.Debug("meta updated", zap.String("object_type", e.ObjectType), zap.Uint64("id", e.ID))
	return nil
}

// Delete removes the row of e. ErrNotFound is returned when no row matched;
// the cache is invalidated either way.
func (s *Store) Delete(ctx context.Context, e Entity) error {
	if e.ID == 0 {
		return ErrNotFound
	}
	d, err := s.types.Lookup(e.ObjectType)
	if err != nil {
		return err
	}

	n, err := s.storage.Delete(ctx, d, e.ID)
	if err != nil {
		return &StorageError{ObjectType: e.ObjectType, Op: "delete", Err: err}
	}

	s.cache.Invalidate(ctx, e.ObjectType, e.ID)
	if n == 0 {
		return ErrNotFound
	}
	s.logger.Debug("meta deleted", zap.String("object_type", e.ObjectType), zap.Uint64("id", e.ID))
	return nil
}

// Prime loads the uncached ids in one storage round trip and adds them to
// the cache. Rows that cannot be mapped are skipped.
func (s *Store) Prime(ctx context.Context, objectType string, ids []uint64) error {
	d, err := s.types.Lookup(objectType)
	if err != nil {
		return err
	}

	missing := s.cache.Missing(ctx, objectType, ids)
	if len(missing) == 0 {
		return nil
	}

	rows, err := s.storage.FetchRows(ctx, d, missing)
	if err != nil {
		return &StorageError{ObjectType: objectType, Op: "prime", Err: err}
	}

	for _, row := range rows {
		e, err := FromRow(d, row)
		if err != nil {
			continue
		}
		s.cache.Add(ctx, objectType, e.ID, e)
	}
	return nil
}
