package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-meta-query/pkg/di"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "METAQUERY"
	defaultDSN = "metaquery.db"
)

// configKeys are the settings readable from the config file and the
// METAQUERY_* environment. Nested keys map to METAQUERY_SECTION_KEY.
var configKeys = []string{
	"storage.driver",
	"storage.dsn",
	"storage.max_open_conns",
	"storage.debug",
	"cache.backend",
	"cache.capacity",
	"cache.num_shards",
	"cache.ttl",
	"cache.eviction_percentage",
	"cache.eviction_interval",
	"cache.redis.addr",
	"cache.redis.password",
	"cache.redis.db",
	"cache.redis.prefix",
	"types.prefix",
	"types.base_prefix",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	d := di.DefaultConfig()
	defaults := map[string]any{
		"storage.driver":            d.Storage.Driver,
		"storage.dsn":               defaultDSN,
		"storage.max_open_conns":    d.Storage.MaxOpenConns,
		"storage.debug":             d.Storage.Debug,
		"cache.backend":             string(d.Cache.Backend),
		"cache.capacity":            d.Cache.Capacity,
		"cache.num_shards":          d.Cache.NumShards,
		"cache.ttl":                 d.Cache.TTL,
		"cache.eviction_percentage": d.Cache.EvictionPercentage,
		"cache.eviction_interval":   d.Cache.EvictionInterval,
		"cache.redis.addr":          d.Cache.Redis.Addr,
		"cache.redis.password":      d.Cache.Redis.Password,
		"cache.redis.db":            d.Cache.Redis.DB,
		"cache.redis.prefix":        d.Cache.Redis.Prefix,
		"types.prefix":              d.Types.Prefix,
		"types.base_prefix":         d.Types.BasePrefix,
	}
	for _, key := range configKeys {
		v.SetDefault(key, defaults[key])
		_ = v.BindEnv(key)
	}
	return v
}

// loadConfig reads the optional config file and decodes every source into
// a container config.
func loadConfig(v *viper.Viper, path string) (di.Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return di.Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("metaquery")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return di.Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := di.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return di.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
