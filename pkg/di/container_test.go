package di

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-meta-query/cache"
	"github.com/goliatone/go-meta-query/internal/storage"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/goliatone/go-meta-query/pkg/testsupport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Storage = testsupport.SQLiteConfig()
	return cfg
}

func newTestContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()

	container, err := NewContainer(testConfig(), opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	if err := container.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	return container
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_ValidateReportsEverySection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = "memcached"
	cfg.Storage.Driver = "mysql"
	cfg.Types.Prefix = "wp;"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, section := range []string{"cache:", "storage:", "types:"} {
		if !strings.Contains(err.Error(), section) {
			t.Errorf("error %q does not mention %s", err, section)
		}
	}

	if _, err := NewContainer(cfg); err == nil {
		t.Error("NewContainer() should reject an invalid config")
	}
}

func TestNewContainer(t *testing.T) {
	container := newTestContainer(t)

	if container.DB() == nil {
		t.Error("Container should have a database handle")
	}
	if container.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if container.Store() == nil || container.Query() == nil {
		t.Fatal("Container should wire the store and the query executor")
	}
	if container.Store().Types() != container.Registry() {
		t.Error("store and container should share the registry")
	}

	want := []string{"affiliate", "comment", "customer", "post", "term", "user"}
	got := container.Registry().Names(metatype.Match{})
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if container.Config().Storage.Driver != storage.DriverSQLite {
		t.Errorf("Config() driver = %q", container.Config().Storage.Driver)
	}
}

func TestNewContainer_WithPlugins(t *testing.T) {
	container := newTestContainer(t, WithPlugins(metatype.CorePlugin()))

	if _, ok := container.Registry().Get("post"); !ok {
		t.Error("core types should be registered")
	}
	if _, ok := container.Registry().Get("customer"); ok {
		t.Error("integration types should not be registered")
	}
}

func TestNewContainer_FailingPluginSkipped(t *testing.T) {
	broken := metatype.Plugin{
		Name: "broken",
		Register: func(r *metatype.Registry) error {
			return errors.New("boom")
		},
	}
	container := newTestContainer(t, WithPlugins(broken, metatype.CorePlugin()))

	if _, ok := container.Registry().Get("post"); !ok {
		t.Error("plugins after a failing one should still run")
	}
}

func TestNewContainer_WithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	container := newTestContainer(t, WithRegisterer(reg))
	ctx := context.Background()

	id, err := container.Store().Create(ctx, "post", testsupport.MetaRow{ObjectID: 1, Key: "k", Value: "v"}.Fields())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := container.Store().Resolve(ctx, "post", id); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	n, err := testutil.GatherAndCount(reg, "metaquery_cache_requests_total", "metaquery_storage_queries_total")
	if err != nil {
		t.Fatalf("GatherAndCount() failed: %v", err)
	}
	if n == 0 {
		t.Error("expected cache and storage metrics to be recorded")
	}
}

func TestNewContainerWithDB(t *testing.T) {
	db := testsupport.OpenDB(t)

	container, err := NewContainerWithDB(DefaultConfig(), db)
	if err != nil {
		t.Fatalf("NewContainerWithDB() failed: %v", err)
	}
	if container.DB() != db {
		t.Error("container should use the supplied handle")
	}
	if err := container.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Errorf("supplied handle should stay open: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Cache.Capacity = -1
	if _, err := NewContainerWithDB(cfg, db); err == nil {
		t.Error("NewContainerWithDB() should reject an invalid cache config")
	}
}

func TestNewContainer_RedisBackendUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = cache.BackendRedis
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	if _, err := NewContainer(cfg); err == nil {
		t.Error("NewContainer() should fail when redis is unreachable")
	}
}
