package cache

import (
	"context"
	"testing"
	"time"

	"chatwarden/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*CountCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCountCache(client, ttl), mr
}

func TestCountKey(t *testing.T) {
	chatID := int64(-100123)
	assert.Equal(t, "ledger:count:user_banned:-100123", CountKey(models.ActionUserBanned, &chatID))
	assert.Equal(t, "ledger:count:message_deleted:all", CountKey(models.ActionMessageDeleted, nil))
}

func TestCountCache_GetSet(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	chatID := int64(42)

	_, stamp, ok := c.Get(ctx, models.ActionUserWarned, &chatID)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, models.ActionUserWarned, &chatID, 3, stamp))
	n, _, ok := c.Get(ctx, models.ActionUserWarned, &chatID)
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	mr.FastForward(2 * time.Minute)
	_, _, ok = c.Get(ctx, models.ActionUserWarned, &chatID)
	assert.False(t, ok, "entry should expire after ttl")
}

func TestCountCache_Invalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	chatID := int64(7)
	other := int64(8)

	for _, scope := range []*int64{&chatID, nil, &other} {
		_, stamp, _ := c.Get(ctx, models.ActionUserBanned, scope)
		require.NoError(t, c.Set(ctx, models.ActionUserBanned, scope, 1, stamp))
	}

	c.Invalidate(ctx, models.ActionUserBanned, chatID)

	assert.False(t, mr.Exists(CountKey(models.ActionUserBanned, &chatID)))
	assert.False(t, mr.Exists(CountKey(models.ActionUserBanned, nil)))
	assert.True(t, mr.Exists(CountKey(models.ActionUserBanned, &other)))
}

func TestCountCache_SkipsCountReadBeforeInvalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	chatID := int64(-100123)

	// A reader misses, then an append lands before it writes its count back.
	_, stamp, ok := c.Get(ctx, models.ActionMessageDeleted, &chatID)
	require.False(t, ok)
	c.Invalidate(ctx, models.ActionMessageDeleted, chatID)

	err := c.Set(ctx, models.ActionMessageDeleted, &chatID, 0, stamp)
	assert.ErrorIs(t, err, ErrStaleCount)
	assert.False(t, mr.Exists(CountKey(models.ActionMessageDeleted, &chatID)))

	// A fresh miss after the invalidation may populate the key.
	_, stamp, ok = c.Get(ctx, models.ActionMessageDeleted, &chatID)
	require.False(t, ok)
	require.NoError(t, c.Set(ctx, models.ActionMessageDeleted, &chatID, 1, stamp))
	n, _, ok := c.Get(ctx, models.ActionMessageDeleted, &chatID)
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestCountCache_HitStampIsNotWritable(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, stamp, _ := c.Get(ctx, models.ActionUserMuted, nil)
	require.NoError(t, c.Set(ctx, models.ActionUserMuted, nil, 2, stamp))

	_, hitStamp, ok := c.Get(ctx, models.ActionUserMuted, nil)
	require.True(t, ok)
	require.NoError(t, c.Set(ctx, models.ActionUserMuted, nil, 9, hitStamp))
	n, _, _ := c.Get(ctx, models.ActionUserMuted, nil)
	assert.Equal(t, int64(2), n)
}

func TestCountCache_NilClientIsNoop(t *testing.T) {
	c := NewCountCache(nil, 0)
	ctx := context.Background()

	assert.False(t, c.Enabled())
	_, stamp, ok := c.Get(ctx, models.ActionUserBanned, nil)
	assert.False(t, ok)
	assert.NoError(t, c.Set(ctx, models.ActionUserBanned, nil, 1, stamp))
	c.Invalidate(ctx, models.ActionUserBanned, 1)

	var nilCache *CountCache
	assert.False(t, nilCache.Enabled())
}

func TestCountCache_RedisDownMisses(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, _, ok := c.Get(context.Background(), models.ActionUserBanned, nil)
	assert.False(t, ok)
}

func TestInitRedis(t *testing.T) {
	t.Run("empty address", func(t *testing.T) {
		assert.Nil(t, InitRedis(""))
	})

	t.Run("invalid url", func(t *testing.T) {
		assert.Nil(t, InitRedis("redis://localhost:6379/notadb"))
	})

	t.Run("reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := InitRedis("redis://" + mr.Addr())
		require.NotNil(t, client)
		defer client.Close()
		assert.NoError(t, client.Ping(context.Background()).Err())
	})

	t.Run("plain host:port", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := InitRedis(mr.Addr())
		require.NotNil(t, client)
		_ = client.Close()
	})
}
