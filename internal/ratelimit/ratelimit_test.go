package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterRedisWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	now := time.Date(2024, 12, 23, 10, 0, 0, 0, time.UTC)
	l := New(rdb, 3, time.Minute, nil)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, 42), "event %d", i)
	}
	assert.False(t, l.Allow(ctx, 42))
	assert.True(t, l.Allow(ctx, 43), "other chats have their own counter")

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	assert.True(t, mr.TTL(keys[0]) > 0)

	now = now.Add(time.Minute)
	assert.True(t, l.Allow(ctx, 42), "next window resets the counter")
	require.NoError(t, l.Ping(ctx))
}

func TestLimiterFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	now := time.Date(2024, 12, 23, 10, 0, 0, 0, time.UTC)
	l := New(rdb, 2, time.Minute, nil)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	assert.True(t, l.Allow(ctx, 1))
	assert.True(t, l.Allow(ctx, 1))
	assert.False(t, l.Allow(ctx, 1))
	assert.Error(t, l.Ping(ctx))
}

func TestLimiterLocalRefill(t *testing.T) {
	now := time.Date(2024, 12, 23, 10, 0, 0, 0, time.UTC)
	l := New(nil, 2, time.Minute, nil)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	assert.True(t, l.Allow(ctx, 1))
	assert.True(t, l.Allow(ctx, 1))
	assert.False(t, l.Allow(ctx, 1))

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow(ctx, 1))
}

func TestLimiterDisabled(t *testing.T) {
	l := New(nil, 0, time.Minute, nil)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(context.Background(), 1))
	}

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow(context.Background(), 1))
	assert.NoError(t, nilLimiter.Ping(context.Background()))
}
