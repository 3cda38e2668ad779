package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKeyIsStableAndProviderScoped(t *testing.T) {
	a := Key("rate these laptops", "openai")
	assert.Equal(t, a, Key("rate these laptops", "openai"))
	assert.NotEqual(t, a, Key("rate these laptops", "anthropic"))
	assert.NotEqual(t, a, Key("rate these laptop", "openai"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, Key("ab", "c"), Key("b", "ca"))
}

func TestMemoryExpiresLazily(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(0, WithClock(clk.Now))

	require.NoError(t, c.Set(ctx, "k", "v"))
	clk.Advance(DefaultTTL)
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	clk.Advance(time.Second)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Hour)
	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "2"))
	require.NoError(t, c.Delete(ctx, "b"))
	assert.Equal(t, 1, c.Len())
	require.NoError(t, c.Clear(ctx))
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}
	require.NoError(t, c.Set(ctx, "k", "v"))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis, *clock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedisWithClient(client, "test:", 0)
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.now = clk.Now
	t.Cleanup(func() { _ = r.Close() })
	return r, mr, clk
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t)

	_, ok, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "k", `[{"name":"A"}]`))
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, DefaultTTL, mr.TTL("test:k"))

	got, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"name":"A"}]`, got)
}

func TestRedisLazyAgeCheck(t *testing.T) {
	ctx := context.Background()
	r, mr, clk := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "k", "v"))
	clk.Advance(DefaultTTL + time.Second)

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:k"))
}

func TestRedisExpiryBackstop(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "k", "v"))
	mr.FastForward(DefaultTTL + time.Second)

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisClearOnlyTouchesPrefix(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t)

	require.NoError(t, r.Set(ctx, "a", "1"))
	require.NoError(t, r.Set(ctx, "b", "2"))
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, r.Delete(ctx, "a"))
	assert.False(t, mr.Exists("test:a"))
	assert.True(t, mr.Exists("test:b"))

	require.NoError(t, r.Clear(ctx))
	assert.False(t, mr.Exists("test:b"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t)
	require.NoError(t, mr.Set("test:k", "not json"))

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisUnavailable(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
