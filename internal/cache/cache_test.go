package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryCache_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryCache().WithClock(clock.now)

	require.NoError(t, c.Set(ctx, "menu:1", []byte("salmon"), 5*time.Minute))

	got, ok, err := c.Get(ctx, "menu:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("salmon"), got)

	clock.advance(5*time.Minute - time.Second)
	_, ok, _ = c.Get(ctx, "menu:1")
	assert.True(t, ok, "entry should live until its TTL")

	clock.advance(time.Second)
	_, ok, _ = c.Get(ctx, "menu:1")
	assert.False(t, ok, "entry should be gone at its TTL")
	assert.Equal(t, 1, c.Len(), "expired entries stay until swept")

	assert.Equal(t, 1, c.Sweep())
	assert.Zero(t, c.Len())
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := NewMemoryCache().WithClock(clock.now)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	clock.advance(24 * time.Hour)

	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Zero(t, c.Sweep())
}

func TestMemoryCache_DeleteAndIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	val := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", val, time.Minute))
	val[0] = 'z'

	got, ok, _ := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))

	got[0] = 'y'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Janitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "short", []byte("x"), 5*time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", []byte("y"), time.Hour))

	c.StartJanitor(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
	_, ok, _ := c.Get(ctx, "long")
	assert.True(t, ok)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisCacheFromClient(client, "restaurant:menu")
}

func TestRedisCache_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, c := setupTestRedis(t)

	require.NoError(t, c.Set(ctx, "7", []byte(`{"id":7}`), 30*time.Second))
	assert.True(t, mr.Exists("restaurant:menu:7"))

	got, ok, err := c.Get(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":7}`, string(got))

	mr.FastForward(31 * time.Second)
	_, ok, err = c.Get(ctx, "7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_MissAndDelete(t *testing.T) {
	ctx := context.Background()
	_, c := setupTestRedis(t)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisCache_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := NewRedisCache(context.Background(), RedisOptions{Addr: mr.Addr(), Namespace: "ns"})
	require.NoError(t, err)
	defer c.Close()

	mr.Close()
	_, err = NewRedisCache(context.Background(), RedisOptions{Addr: mr.Addr()})
	assert.Error(t, err)
}
