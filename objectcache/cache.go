package objectcache

import (
	"context"
	"strconv"
	"time"

	"github.com/goliatone/go-meta-query/cache"
	"github.com/goliatone/go-meta-query/internal/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Recorder receives cache hit and miss notifications.
type Recorder interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

// Entry is a cached query result: the matching ids of one page and the
// total number of rows matching the filter.
type Entry struct {
	IDs   []uint64 `msgpack:"ids"`
	Found int64    `msgpack:"found"`
}

type config struct {
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*config)

// WithLogger sets the logger used to report cache failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the hit/miss recorder.
func WithRecorder(r Recorder) Option {
	return func(c *config) {
		c.recorder = r
	}
}

// WithClock overrides the time source used to mint invalidation tokens.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache stores entities by (type, id) and query results by (type,
// fingerprint, token) on top of a cache.Service. Every failure of the
// underlying service is logged and reported as a miss.
type Cache[T any] struct {
	service  cache.Service
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	// tokens holds the last token this process observed or issued per type,
	// so a bump is visible locally even when the service drops the write.
	tokens *xsync.MapOf[string, uint64]
}

// New creates a Cache backed by service.
func New[T any](service cache.Service, opts ...Option) *Cache[T] {
	cfg := config{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Cache[T]{
		service:  service,
		logger:   cfg.logger,
		recorder: cfg.recorder,
		now:      cfg.now,
		tokens:   xsync.NewMapOf[string, uint64](),
	}
}

func entityKey(objectType string, id uint64) cache.Key {
	return cache.Key{Group: objectType, Kind: cache.KindEntity, ID: strconv.FormatUint(id, 10)}
}

func tokenKey(objectType string) cache.Key {
	return cache.Key{Group: objectType, Kind: cache.KindToken}
}

func resultKey(objectType, fingerprint string, token uint64) cache.Key {
	return cache.Key{Group: objectType, Kind: cache.KindQuery, ID: fingerprint, Token: token}
}

// Get returns the cached entity for (objectType, id).
func (c *Cache[T]) Get(ctx context.Context, objectType string, id uint64) (T, bool) {
	var v T
	ok := c.load(ctx, entityKey(objectType, id), metrics.CacheEntity, &v)
	return v, ok
}

// Add stores v unless an entry already exists and reports whether it did.
func (c *Cache[T]) Add(ctx context.Context, objectType string, id uint64, v T) bool {
	return c.add(ctx, entityKey(objectType, id), v)
}

// Set stores v, replacing any existing entry.
func (c *Cache[T]) Set(ctx context.Context, objectType string, id uint64, v T) {
	key := entityKey(objectType, id)
	data, err := cache.Encode(v)
	if err != nil {
		c.warn("encode", key, err)
		return
	}
	if err := c.service.Set(ctx, key, data); err != nil {
		c.warn("set", key, err)
	}
}

// Invalidate evicts the entity and bumps the type token, which orphans every
// query result cached for objectType.
func (c *Cache[T]) Invalidate(ctx context.Context, objectType string, id uint64) uint64 {
	key := entityKey(objectType, id)
	if err := c.service.Delete(ctx, key); err != nil {
		c.warn("delete", key, err)
	}
	return c.Bump(ctx, objectType)
}

// Missing returns the ids of ids that have no cached entity, in input order.
func (c *Cache[T]) Missing(ctx context.Context, objectType string, ids []uint64) []uint64 {
	var missing []uint64
	for _, id := range ids {
		if _, err := c.service.Get(ctx, entityKey(objectType, id)); err != nil {
			missing = append(missing, id)
		}
	}
	return missing
}

// Token returns the current invalidation token of objectType, initialising
// it on first use.
func (c *Cache[T]) Token(ctx context.Context, objectType string) uint64 {
	key := tokenKey(objectType)
	fetched := false
	token, _ := cache.GetOrFetch(ctx, c.service, key, func(context.Context) (uint64, error) {
		fetched = true
		if last, ok := c.tokens.Load(objectType); ok {
			return last, nil
		}
		return c.mint(objectType, 0), nil
	})
	if fetched {
		c.miss(metrics.CacheToken)
	} else {
		c.hit(metrics.CacheToken)
	}
	return c.observe(objectType, token)
}

// Bump advances the invalidation token of objectType. The new token is
// strictly greater than any token previously returned by this Cache for the
// type and than the token currently held by the service.
func (c *Cache[T]) Bump(ctx context.Context, objectType string) uint64 {
	key := tokenKey(objectType)

	var current uint64
	if data, err := c.service.Get(ctx, key); err == nil {
		if err := cache.Decode(data, &current); err != nil {
			c.warn("decode", key, err)
		}
	} else if !cache.IsMiss(err) {
		c.warn("get", key, err)
	}

	next := c.mint(objectType, current)

	data, err := cache.Encode(next)
	if err == nil {
		err = c.service.Set(ctx, key, data)
	}
	if err != nil {
		c.warn("bump", key, err)
	}

	c.logger.Debug("invalidation token bumped", zap.String("object_type", objectType), zap.Uint64("token", next))
	return next
}

// mint returns max(now, last local token + 1, current + 1) and records it.
func (c *Cache[T]) mint(objectType string, current uint64) uint64 {
	next, _ := c.tokens.Compute(objectType, func(last uint64, _ bool) (uint64, bool) {
		token := uint64(c.now().UnixNano())
		if token <= last {
			token = last + 1
		}
		if token <= current {
			token = current + 1
		}
		return token, false
	})
	return next
}

// observe folds a token read from the service into the local view and
// returns the larger of the two.
func (c *Cache[T]) observe(objectType string, token uint64) uint64 {
	got, _ := c.tokens.Compute(objectType, func(last uint64, _ bool) (uint64, bool) {
		if token > last {
			return token, false
		}
		return last, false
	})
	return got
}

// Result returns the query result cached under (fingerprint, token).
func (c *Cache[T]) Result(ctx context.Context, objectType, fingerprint string, token uint64) (Entry, bool) {
	var e Entry
	ok := c.load(ctx, resultKey(objectType, fingerprint, token), metrics.CacheQuery, &e)
	return e, ok
}

// AddResult stores e under (fingerprint, token) unless a racing writer got
// there first.
func (c *Cache[T]) AddResult(ctx context.Context, objectType, fingerprint string, token uint64, e Entry) bool {
	return c.add(ctx, resultKey(objectType, fingerprint, token), e)
}

func (c *Cache[T]) load(ctx context.Context, key cache.Key, name string, dst any) bool {
	data, err := c.service.Get(ctx, key)
	if err != nil {
		if !cache.IsMiss(err) {
			c.warn("get", key, err)
		}
		c.miss(name)
		return false
	}
	if err := cache.Decode(data, dst); err != nil {
		c.warn("decode", key, err)
		c.miss(name)
		return false
	}
	c.hit(name)
	return true
}

func (c *Cache[T]) add(ctx context.Context, key cache.Key, v any) bool {
	data, err := cache.Encode(v)
	if err != nil {
		c.warn("encode", key, err)
		return false
	}
	added, err := c.service.Add(ctx, key, data)
	if err != nil {
		c.warn("add", key, err)
		return false
	}
	return added
}

func (c *Cache[T]) hit(name string) {
	if c.recorder != nil {
		c.recorder.CacheHit(name)
	}
}

func (c *Cache[T]) miss(name string) {
	if c.recorder != nil {
		c.recorder.CacheMiss(name)
	}
}

func (c *Cache[T]) warn(op string, key cache.Key, err error) {
	c.logger.Warn("object cache failure",
		zap.String("op", op),
		zap.String("key", key.String()),
		zap.Error(err),
	)
}
