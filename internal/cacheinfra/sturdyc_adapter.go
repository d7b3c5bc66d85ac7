package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// Store is the flat string-keyed contract both adapters satisfy.
type Store interface {
	// Get reports found=false for an absent key; err is reserved for backend failures.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Add(ctx context.Context, key string, value []byte) (bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Config sizes the process-local sturdyc store.
type Config struct {
	Capacity  int
	NumShards int
	// TTL applies to every entry, including invalidation tokens.
	TTL time.Duration
	// EvictionPercentage of entries is dropped once Capacity is reached.
	EvictionPercentage int
	// EvictionInterval of zero keeps the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns the sizing used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions returns the optional settings; the sizing fields are
// constructor arguments.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate returns a *ConfigError naming the first invalid field.
func (c Config) Validate() error {
	checks := []struct {
		ok    bool
		field string
		msg   string
	}{
		{c.Capacity > 0, "Capacity", "must be greater than 0"},
		{c.NumShards > 0, "NumShards", "must be greater than 0"},
		{c.TTL > 0, "TTL", "must be greater than 0"},
		{c.EvictionPercentage >= 1 && c.EvictionPercentage <= 100, "EvictionPercentage", "must be between 1 and 100"},
		{c.EvictionInterval >= 0, "EvictionInterval", "must be non-negative"},
	}
	for _, check := range checks {
		if !check.ok {
			return &ConfigError{Field: check.field, Message: check.msg}
		}
	}
	return nil
}

// ConfigError names the store setting that failed validation.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "cacheinfra: invalid " + e.Field + ": " + e.Message
}

// sturdycService wraps a sturdyc client holding encoded payloads.
type sturdycService struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycService returns a Store held in process memory.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &sturdycService{client: client}, nil
}

func (s *sturdycService) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.client.Get(key)
	return value, ok, nil
}

// Add is a get-then-set. A concurrent writer may slip in between the two
// calls; the later write wins.
func (s *sturdycService) Add(_ context.Context, key string, value []byte) (bool, error) {
	if _, ok := s.client.Get(key); ok {
		return false, nil
	}
	s.client.Set(key, value)
	return true, nil
}

func (s *sturdycService) Set(_ context.Context, key string, value []byte) error {
	s.client.Set(key, value)
	return nil
}

func (s *sturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

