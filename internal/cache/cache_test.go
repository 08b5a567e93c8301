package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestLRU(size int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)

	clock.t = clock.t.Add(2 * time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestLRUOverwriteAndDelete(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	c.Set("a", 5)
	v, _ := c.Get("a")
	assert.Equal(t, 5, v)
	assert.Equal(t, 1, c.Size())

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestManagerSweep(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.SetWithTTL("c", 3, time.Hour)

	m := NewManager()
	m.Register(c)
	clock.t = clock.t.Add(5 * time.Minute)

	assert.Equal(t, 2, m.Sweep())
	assert.Equal(t, 1, c.Size())

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	_, ok, err := s.Get(ctx, "rates")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "rates", `{"cdi":"0.149"}`, time.Minute))
	v, ok, err := s.Get(ctx, "rates")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"cdi":"0.149"}`, v)

	require.NoError(t, s.Delete(ctx, "rates"))
	_, ok, _ = s.Get(ctx, "rates")
	assert.False(t, ok)
	require.NoError(t, s.Close())
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	s := NewRedisStore(RedisOptions{Addr: "127.0.0.1:0", Prefix: "caixinhas"})
	defer s.Close()
	assert.Equal(t, "caixinhas:rates", s.key("rates"))

	bare := NewRedisStore(RedisOptions{Addr: "127.0.0.1:0"})
	defer bare.Close()
	assert.Equal(t, "rates", bare.key("rates"))
}
