package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int
	Name string
}

func newTestCache(t *testing.T) Cache {
	t.Helper()
	c, err := NewStandalone(&StandaloneConfig{Capacity: 128})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStandaloneSetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "user:1", user{ID: 1, Name: "alice"}, 0))

	var got user
	require.NoError(t, c.Get(ctx, "user:1", &got))
	assert.Equal(t, user{ID: 1, Name: "alice"}, got)
}

func TestStandaloneGetMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var got user
	err := c.Get(ctx, "absent", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStandaloneDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Delete(ctx, "k"))

	ok, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// 删除不存在的键不报错
	require.NoError(t, c.Delete(ctx, "k"))
}

func TestStandaloneHas(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	ok, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", 42, 0))
	ok, err = c.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStandaloneExpireMissing(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	assert.ErrorIs(t, c.Expire(ctx, "absent", time.Minute), ErrCacheMiss)
}

func TestStandaloneTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))

	var got string
	require.NoError(t, c.Get(ctx, "short", &got))
	assert.Equal(t, "v", got)

	time.Sleep(50 * time.Millisecond)
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestStandaloneInvalidDest(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", "v", 0))

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k", got), ErrInvalidDest)
}

func TestNewModeDispatch(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigNil)

	// 分布式模式缺少连接器
	_, err = New(&Config{Mode: "distributed"})
	assert.Error(t, err)

	_, err = New(&Config{Mode: "bogus"})
	assert.Error(t, err)

	c, err := New(&Config{Mode: "standalone"})
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
