package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/bento/internal/config"
)

type orderItem struct {
	ID         string  `json:"id"`
	MenuItemID string  `json:"menu_item_id"`
	NoSauce    bool    `json:"no_sauce"`
	Price      float64 `json:"price"`
}

type order struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Items  []orderItem `json:"order_items"`
}

func newTestStore(t *testing.T, opts ...config.Option) (*Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	cfg, err := config.NewConfig(append([]config.Option{config.WithClock(mock)}, opts...)...)
	require.NoError(t, err)

	s, err := NewWithClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func newRedisStore(t *testing.T, mr *miniredis.Miniredis) *Store {
	t.Helper()
	cfg, err := config.NewConfig(
		config.WithClock(clock.NewMock()),
		config.WithRedis(mr.Addr(), "", 0),
	)
	require.NoError(t, err)
	cfg.Resilience.Retry.Attempts = 1

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewWithClient(context.Background(), cfg, client)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	in := order{
		ID:     "20250312",
		Status: "active",
		Items: []orderItem{
			{ID: "i1", MenuItemID: "m1", Price: 95},
			{ID: "i2", MenuItemID: "m2", NoSauce: true, Price: 110.5},
		},
	}
	s.Write(ctx, "order_20250312", in)

	var out order
	require.True(t, s.Read(ctx, "order_20250312", &out))
	assert.Equal(t, in, out)

	var generic []any
	s.Write(ctx, "orders", []map[string]any{{"id": "a"}, {"id": "b"}})
	require.True(t, s.Read(ctx, "orders", &generic))
	assert.Len(t, generic, 2)
}

func TestWriteOverwritesWholeEntry(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, "orders", []string{"a", "b"})
	first, ok := s.WrittenAt(ctx, "orders")
	require.True(t, ok)

	mock.Add(5 * time.Second)
	s.Write(ctx, "orders", []string{"c"})

	var out []string
	require.True(t, s.Read(ctx, "orders", &out))
	assert.Equal(t, []string{"c"}, out)

	second, ok := s.WrittenAt(ctx, "orders")
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, second.Sub(first))
}

func TestReadAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	var out order
	assert.False(t, s.Read(context.Background(), "order_missing", &out))
	assert.EqualValues(t, 1, s.Metrics().Misses.Load())
}

func TestIsStale(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	assert.True(t, s.IsStale(ctx, "restaurants", time.Minute), "absent key is stale")

	s.Write(ctx, "restaurants", []string{"r1"})
	assert.False(t, s.IsStale(ctx, "restaurants", time.Minute))

	mock.Add(time.Minute)
	assert.False(t, s.IsStale(ctx, "restaurants", time.Minute), "exactly maxAge is still fresh")

	mock.Add(time.Millisecond)
	assert.True(t, s.IsStale(ctx, "restaurants", time.Minute))
	assert.False(t, s.IsStale(ctx, "restaurants", 2*time.Minute))
}

func TestIsStaleDefaultMaxAge(t *testing.T) {
	s, mock := newTestStore(t, config.WithDefaultMaxAge(10*time.Second))
	ctx := context.Background()

	s.Write(ctx, "orders", []string{})
	mock.Add(9 * time.Second)
	assert.False(t, s.IsStale(ctx, "orders", 0))
	mock.Add(2 * time.Second)
	assert.True(t, s.IsStale(ctx, "orders", 0))
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Remove(ctx, "never_written")

	s.Write(ctx, "order_1", order{ID: "1"})
	s.Remove(ctx, "order_1")
	s.Remove(ctx, "order_1")

	var out order
	assert.False(t, s.Read(ctx, "order_1", &out))
	assert.Zero(t, s.Metrics().Errors.Load())
}

func TestUnserializableValueDegradesToMiss(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, "top5_rankings", map[string]float64{"a": 1})
	s.Write(ctx, "top5_rankings", map[string]float64{"a": math.NaN()})

	var out map[string]float64
	assert.False(t, s.Read(ctx, "top5_rankings", &out), "old value must not be served as the new one")
	assert.EqualValues(t, 1, s.Metrics().Errors.Load())

	assert.NotPanics(t, func() { s.Write(ctx, "bad", make(chan int)) })
}

func TestDecodeMismatchIsMiss(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, "orders", "not a list")
	var out []order
	assert.False(t, s.Read(ctx, "orders", &out))
}

func TestRawSnapshotIsIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, "order_1", order{ID: "1", Status: "active"})
	snap, ok := s.ReadRaw(ctx, "order_1")
	require.True(t, ok)
	for i := range snap {
		snap[i] = 'x'
	}

	var out order
	require.True(t, s.Read(ctx, "order_1", &out))
	assert.Equal(t, "active", out.Status)
}

func TestClearAndKeys(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, "orders", []string{})
	s.Write(ctx, "restaurants", []string{})
	assert.ElementsMatch(t, []string{"orders", "restaurants"}, s.Keys())

	s.Clear(ctx)
	assert.Empty(t, s.Keys())
	var out []string
	assert.False(t, s.Read(ctx, "orders", &out))
}

func TestGobSerialization(t *testing.T) {
	s, _ := newTestStore(t, config.WithSerialization("gob"))
	ctx := context.Background()

	in := order{ID: "g1", Items: []orderItem{{ID: "i", Price: 80}}}
	s.Write(ctx, "order_g1", in)
	var out order
	require.True(t, s.Read(ctx, "order_g1", &out))
	assert.Equal(t, in, out)
}

func TestDurableTierSurvivesRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	first := newRedisStore(t, mr)
	first.Write(ctx, "order_7", order{ID: "7", Status: "closed"})
	assert.True(t, mr.Exists("bento_cache_order_7"))

	second := newRedisStore(t, mr)
	var out order
	require.True(t, second.Read(ctx, "order_7", &out))
	assert.Equal(t, "closed", out.Status)
	assert.Contains(t, second.Keys(), "order_7", "durable hit is copied into the local tier")

	second.Remove(ctx, "order_7")
	assert.False(t, mr.Exists("bento_cache_order_7"))
}

func TestDurableClearKeepsForeignKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("other_app_key", "keep"))

	s := newRedisStore(t, mr)
	s.Write(ctx, "orders", []string{"a"})
	s.Write(ctx, "restaurants", []string{"b"})
	s.Clear(ctx)

	assert.False(t, mr.Exists("bento_cache_orders"))
	assert.False(t, mr.Exists("bento_cache_restaurants"))
	assert.True(t, mr.Exists("other_app_key"))
}

func TestDurableOutageDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s := newRedisStore(t, mr)
	mr.Close()

	assert.NotPanics(t, func() {
		s.Write(ctx, "orders", []string{"a"})
		s.Remove(ctx, "restaurants")
	})

	var out []string
	assert.True(t, s.Read(ctx, "orders", &out), "local tier still serves")
	assert.Equal(t, []string{"a"}, out)
	assert.Positive(t, s.Metrics().Errors.Load())
}
