package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, zap.NewNop()), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.Set(ctx, "quiz:doc:1", payload{Name: "intro", Count: 3}, time.Minute))

	var got payload
	require.NoError(t, c.Get(ctx, "quiz:doc:1", &got))
	assert.Equal(t, payload{Name: "intro", Count: 3}, got)
}

func TestRedisCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var got string
	err := c.Get(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ephemeral", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "ephemeral", &got), ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "gone", 1, 0))
	require.NoError(t, c.Delete(ctx, "gone"))

	var got int
	assert.ErrorIs(t, c.Get(ctx, "gone", &got), ErrCacheMiss)

	// deleting an absent key is not an error
	assert.NoError(t, c.Delete(ctx, "gone"))
}

func TestRedisCache_DeletePattern(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "progress:a", 1, 0))
	require.NoError(t, c.Set(ctx, "progress:b", 2, 0))
	require.NoError(t, c.Set(ctx, "quiz:keep", 3, 0))

	require.NoError(t, c.DeletePattern(ctx, "progress:*"))

	var got int
	assert.ErrorIs(t, c.Get(ctx, "progress:a", &got), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "progress:b", &got), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "quiz:keep", &got))
	assert.Equal(t, 3, got)
}
