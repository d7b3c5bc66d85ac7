package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the settings for the shared redis cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key so several deployments can share a server.
	Prefix string
	// TTL of zero stores entries without expiry.
	TTL time.Duration
}

// DefaultRedisConfig returns a default redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "metaquery:",
	}
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Redis.Addr", Message: "cannot be empty"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "Redis.DB", Message: "must be non-negative"}
	}
	if c.TTL < 0 {
		return &ConfigError{Field: "TTL", Message: "must be non-negative"}
	}
	return nil
}

type redisService struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisService dials redis and verifies the connection.
func NewRedisService(cfg RedisConfig) (*redisService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisServiceWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisServiceWithClient wraps an existing client.
func NewRedisServiceWithClient(client *redis.Client, prefix string, ttl time.Duration) *redisService {
	return &redisService{client: client, prefix: prefix, ttl: ttl}
}

func (r *redisService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Add maps to SETNX, so concurrent adds for the same key have a single winner.
func (r *redisService) Add(ctx context.Context, key string, value []byte) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+key, value, r.ttl).Result()
}

func (r *redisService) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

func (r *redisService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the redis connection.
func (r *redisService) Close() error {
	return r.client.Close()
}
