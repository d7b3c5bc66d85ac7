package objectcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-meta-query/cache"
	"github.com/goliatone/go-meta-query/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    uint64 `msgpack:"id"`
	Value string `msgpack:"value"`
}

func newMemoryService(t *testing.T) cache.Service {
	t.Helper()
	svc, err := cache.NewService(cache.DefaultConfig())
	require.NoError(t, err)
	return svc
}

// failingService fails every operation.
type failingService struct{}

var errDown = errors.New("cache down")

func (failingService) Get(context.Context, cache.Key) ([]byte, error)       { return nil, errDown }
func (failingService) Add(context.Context, cache.Key, []byte) (bool, error) { return false, errDown }
func (failingService) Set(context.Context, cache.Key, []byte) error         { return errDown }
func (failingService) Delete(context.Context, cache.Key) error              { return errDown }

func TestCache_EntityLifecycle(t *testing.T) {
	ctx := context.Background()
	c := New[row](newMemoryService(t))

	_, ok := c.Get(ctx, "post", 1)
	assert.False(t, ok)

	assert.True(t, c.Add(ctx, "post", 1, row{ID: 1, Value: "a"}))
	assert.False(t, c.Add(ctx, "post", 1, row{ID: 1, Value: "b"}), "add must not overwrite")

	got, ok := c.Get(ctx, "post", 1)
	require.True(t, ok)
	assert.Equal(t, "a", got.Value)

	c.Set(ctx, "post", 1, row{ID: 1, Value: "c"})
	got, _ = c.Get(ctx, "post", 1)
	assert.Equal(t, "c", got.Value)

	_, ok = c.Get(ctx, "comment", 1)
	assert.False(t, ok, "types must not share entries")

	c.Invalidate(ctx, "post", 1)
	_, ok = c.Get(ctx, "post", 1)
	assert.False(t, ok)
}

func TestCache_TokenMonotonic(t *testing.T) {
	ctx := context.Background()
	fixed := time.Unix(1700000000, 0)
	c := New[row](newMemoryService(t), WithClock(func() time.Time { return fixed }))

	first := c.Token(ctx, "post")
	assert.Equal(t, uint64(fixed.UnixNano()), first)
	assert.Equal(t, first, c.Token(ctx, "post"), "token is stable without writes")

	prev := first
	for i := 0; i < 5; i++ {
		next := c.Bump(ctx, "post")
		assert.Greater(t, next, prev)
		assert.Equal(t, next, c.Token(ctx, "post"))
		prev = next
	}

	assert.Equal(t, uint64(fixed.UnixNano()), c.Token(ctx, "comment"), "tokens are per type")
}

func TestCache_TokenSharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t)
	fixed := time.Unix(1700000000, 0)
	clock := WithClock(func() time.Time { return fixed })

	a := New[row](svc, clock)
	b := New[row](svc, clock)

	token := a.Token(ctx, "post")
	bumped := b.Bump(ctx, "post")
	assert.Greater(t, bumped, token)
	assert.Equal(t, bumped, a.Token(ctx, "post"), "a bump through one instance is seen by another")
}

func TestCache_ResultInvalidatedByBump(t *testing.T) {
	ctx := context.Background()
	c := New[row](newMemoryService(t))

	token := c.Token(ctx, "post")
	entry := Entry{IDs: []uint64{3, 1, 2}, Found: 10}
	assert.True(t, c.AddResult(ctx, "post", "fp", token, entry))
	assert.False(t, c.AddResult(ctx, "post", "fp", token, Entry{}), "racing writer loses")

	got, ok := c.Result(ctx, "post", "fp", c.Token(ctx, "post"))
	require.True(t, ok)
	assert.Equal(t, entry, got)

	c.Invalidate(ctx, "post", 99)

	_, ok = c.Result(ctx, "post", "fp", c.Token(ctx, "post"))
	assert.False(t, ok, "results cached under an old token must not be served")
}

func TestCache_Missing(t *testing.T) {
	ctx := context.Background()
	c := New[row](newMemoryService(t))

	c.Set(ctx, "post", 2, row{ID: 2})
	assert.Equal(t, []uint64{1, 3}, c.Missing(ctx, "post", []uint64{1, 2, 3}))
	assert.Empty(t, c.Missing(ctx, "post", []uint64{2}))
}

func TestCache_ServiceFailureDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	c := New[row](failingService{})

	assert.False(t, c.Add(ctx, "post", 1, row{ID: 1}))
	c.Set(ctx, "post", 1, row{ID: 1})
	_, ok := c.Get(ctx, "post", 1)
	assert.False(t, ok)

	token := c.Token(ctx, "post")
	bumped := c.Invalidate(ctx, "post", 1)
	assert.Greater(t, bumped, token)
	assert.Equal(t, bumped, c.Token(ctx, "post"), "local view keeps the bump when the service is down")

	_, ok = c.Result(ctx, "post", "fp", bumped)
	assert.False(t, ok)
	assert.Equal(t, []uint64{1}, c.Missing(ctx, "post", []uint64{1}))
}

func TestCache_RecordsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	c := New[row](newMemoryService(t), WithRecorder(m))

	c.Get(ctx, "post", 1)
	c.Set(ctx, "post", 1, row{ID: 1})
	c.Get(ctx, "post", 1)
	c.Result(ctx, "post", "fp", 1)
	c.Token(ctx, "post")
	c.Token(ctx, "post")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues(metrics.CacheEntity, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues(metrics.CacheEntity, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues(metrics.CacheQuery, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues(metrics.CacheToken, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues(metrics.CacheToken, "hit")))
}
