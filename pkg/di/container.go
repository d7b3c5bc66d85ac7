package di

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goliatone/go-meta-query/cache"
	"github.com/goliatone/go-meta-query/internal/cacheinfra"
	"github.com/goliatone/go-meta-query/internal/metrics"
	"github.com/goliatone/go-meta-query/internal/storage"
	"github.com/goliatone/go-meta-query/meta"
	"github.com/goliatone/go-meta-query/metaquery"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/goliatone/go-meta-query/objectcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Config aggregates the configuration of every wired component.
type Config struct {
	Cache   cache.Config    `mapstructure:"cache"`
	Storage storage.Config  `mapstructure:"storage"`
	Types   metatype.Config `mapstructure:"types"`
}

// DefaultConfig returns an in-memory cache over an in-memory sqlite database.
func DefaultConfig() Config {
	return Config{
		Cache:   cache.DefaultConfig(),
		Storage: storage.DefaultConfig(),
		Types:   metatype.DefaultConfig(),
	}
}

// Validate checks every section and reports all failures.
func (c Config) Validate() error {
	var errs []error
	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := c.Types.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("types: %w", err))
	}
	return errors.Join(errs...)
}

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	plugins    []metatype.Plugin
	redis      *redis.Client
}

// Option configures a Container.
type Option func(*options)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer enables Prometheus metrics registered with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithPlugins replaces the built-in registration plugins.
func WithPlugins(plugins ...metatype.Plugin) Option {
	return func(o *options) {
		o.plugins = plugins
	}
}

// WithRedisClient uses client as the cache service, whatever the configured
// backend. The container does not close the client.
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) {
		o.redis = client
	}
}

// Container wires the type registry, cache service, entity store and query
// executor over one database handle.
type Container struct {
	config       Config
	logger       *zap.Logger
	db           *bun.DB
	ownsDB       bool
	types        *metatype.Registry
	cacheService cache.Service
	ownsCache    bool
	store        *meta.Store
	query        *metaquery.Query
}

// NewContainer opens the configured database and wires every component.
func NewContainer(cfg Config, opts ...Option) (*Container, error) {
	o := newOptions(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := o.metrics()
	storageOpts := []storage.Option{storage.WithLogger(o.logger.Named("storage")), storage.WithMetrics(m)}
	db, err := storage.Open(cfg.Storage, storageOpts...)
	if err != nil {
		return nil, err
	}

	c, err := build(cfg, db, o, m)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

// NewContainerWithDB wires every component over an existing handle. The
// handle is not closed by Close.
func NewContainerWithDB(cfg Config, db *bun.DB, opts ...Option) (*Container, error) {
	o := newOptions(opts)
	if err := cfg.Cache.Validate(); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if err := cfg.Types.Validate(); err != nil {
		return nil, fmt.Errorf("types: %w", err)
	}
	return build(cfg, db, o, o.metrics())
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:  zap.NewNop(),
		plugins: metatype.DefaultPlugins(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) metrics() *metrics.Metrics {
	if o.registerer == nil {
		return nil
	}
	return metrics.New(o.registerer)
}

func build(cfg Config, db *bun.DB, o *options, m *metrics.Metrics) (*Container, error) {
	types, err := metatype.NewRegistry(cfg.Types, metatype.WithLogger(o.logger.Named("types")))
	if err != nil {
		return nil, err
	}
	if err := types.Bootstrap(o.plugins...); err != nil {
		// Failed plugins are skipped; the others stay registered.
		o.logger.Warn("type registration failed", zap.Error(err))
	}

	c := &Container{
		config: cfg,
		logger: o.logger,
		db:     db,
		types:  types,
	}

	if o.redis != nil {
		c.cacheService = cache.NewServiceFromStore(
			cacheinfra.NewRedisServiceWithClient(o.redis, cfg.Cache.Redis.Prefix, cfg.Cache.TTL),
		)
	} else {
		svc, err := cache.NewService(cfg.Cache)
		if err != nil {
			return nil, err
		}
		c.cacheService = svc
		c.ownsCache = true
	}

	cacheOpts := []objectcache.Option{objectcache.WithLogger(o.logger.Named("cache"))}
	if m != nil {
		cacheOpts = append(cacheOpts, objectcache.WithRecorder(m))
	}
	objects := objectcache.New[meta.Entity](c.cacheService, cacheOpts...)

	c.store = meta.NewStore(types, storage.New(db), objects, meta.WithLogger(o.logger.Named("meta")))
	c.query = metaquery.New(db, c.store, metaquery.WithLogger(o.logger.Named("query")))
	return c, nil
}

// Config returns the configuration the container was built with.
func (c *Container) Config() Config {
	return c.config
}

// DB returns the database handle.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Registry returns the type registry.
func (c *Container) Registry() *metatype.Registry {
	return c.types
}

// CacheService returns the cache service shared by entities, tokens and
// query results.
func (c *Container) CacheService() cache.Service {
	return c.cacheService
}

// Store returns the entity store.
func (c *Container) Store() *meta.Store {
	return c.store
}

// Query returns the query executor.
func (c *Container) Query() *metaquery.Query {
	return c.query
}

// EnsureSchema creates the meta table of every registered type that does not
// exist yet.
func (c *Container) EnsureSchema(ctx context.Context) error {
	for _, d := range c.types.List(metatype.Match{}) {
		if err := storage.CreateTable(ctx, c.db, d); err != nil {
			return fmt.Errorf("create table for %s: %w", d.ObjectType, err)
		}
	}
	return nil
}

// Close releases the resources the container opened.
func (c *Container) Close() error {
	var errs []error
	if c.ownsCache {
		if closer, ok := c.cacheService.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	if c.ownsDB {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}
