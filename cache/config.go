package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-meta-query/internal/cacheinfra"
)

// Backend selects the cache service implementation.
type Backend string

const (
	// BackendMemory is a process-local sturdyc cache.
	BackendMemory Backend = "memory"
	// BackendRedis is a redis server shared between processes.
	BackendRedis Backend = "redis"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend            Backend       `mapstructure:"backend"`
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	TTL                time.Duration `mapstructure:"ttl"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
	Redis              RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the settings used when Backend is BackendRedis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	memory := cacheinfra.DefaultConfig()
	redis := cacheinfra.DefaultRedisConfig()
	return Config{
		Backend:            BackendMemory,
		Capacity:           memory.Capacity,
		NumShards:          memory.NumShards,
		TTL:                memory.TTL,
		EvictionPercentage: memory.EvictionPercentage,
		EvictionInterval:   memory.EvictionInterval,
		Redis: RedisConfig{
			Addr:   redis.Addr,
			DB:     redis.DB,
			Prefix: redis.Prefix,
		},
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, "":
		return c.toInternal().Validate()
	case BackendRedis:
		return c.toRedis().Validate()
	default:
		return &cacheinfra.ConfigError{Field: "Backend", Message: "must be memory or redis"}
	}
}

// NewService constructs the cache service selected by cfg.Backend.
func NewService(cfg Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == BackendRedis {
		store, err := cacheinfra.NewRedisService(cfg.toRedis())
		if err != nil {
			return nil, err
		}
		return &keyedService{store: store}, nil
	}

	store, err := cacheinfra.NewSturdycService(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return &keyedService{store: store}, nil
}

// NewServiceFromStore adapts a flat string-keyed store to Service. Useful when the
// caller already owns a redis client or sturdyc instance.
func NewServiceFromStore(store cacheinfra.Store) Service {
	return &keyedService{store: store}
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func (c Config) toRedis() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		TTL:      c.TTL,
	}
}

// keyedService flattens structured keys for a string-keyed store.
type keyedService struct {
	store cacheinfra.Store
}

func (s *keyedService) Get(ctx context.Context, key Key) ([]byte, error) {
	data, found, err := s.store.Get(ctx, key.String())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrMiss
	}
	return data, nil
}

func (s *keyedService) Add(ctx context.Context, key Key, value []byte) (bool, error) {
	return s.store.Add(ctx, key.String(), value)
}

func (s *keyedService) Set(ctx context.Context, key Key, value []byte) error {
	return s.store.Set(ctx, key.String(), value)
}

func (s *keyedService) Delete(ctx context.Context, key Key) error {
	return s.store.Delete(ctx, key.String())
}

// Close releases the underlying store when it holds external resources.
func (s *keyedService) Close() error {
	if closer, ok := s.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// IsMiss reports whether err signals an absent key rather than a cache failure.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
