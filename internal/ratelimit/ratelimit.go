// Package ratelimit throttles inbound events per chat.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const keyPrefix = "relaybot:rl:"

// Limiter counts events per chat in fixed windows. Redis is used when
// configured so the counters survive restarts; otherwise, or when Redis
// fails, an in-process token bucket per chat takes over.
type Limiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	logger *zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	local map[int64]*rate.Limiter
}

// New creates a limiter. limit <= 0 disables limiting.
func New(rdb *redis.Client, limit int, window time.Duration, logger *zerolog.Logger) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Limiter{
		redis:  rdb,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
		local:  make(map[int64]*rate.Limiter),
	}
}

// Allow reports whether another event from chatID may be processed.
func (l *Limiter) Allow(ctx context.Context, chatID int64) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	if l.redis != nil {
		ok, err := l.allowRedis(ctx, chatID)
		if err == nil {
			return ok
		}
		l.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("redis rate limit failed, using local limiter")
	}
	return l.allowLocal(chatID)
}

func (l *Limiter) allowRedis(ctx context.Context, chatID int64) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	key := fmt.Sprintf("%s%d:%d", keyPrefix, chatID, bucket)

	n, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(l.limit), nil
}

func (l *Limiter) allowLocal(chatID int64) bool {
	l.mu.Lock()
	lim, ok := l.local[chatID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.local[chatID] = lim
	}
	l.mu.Unlock()
	return lim.AllowN(l.now(), 1)
}

// Ping checks the Redis backend, if any.
func (l *Limiter) Ping(ctx context.Context) error {
	if l == nil || l.redis == nil {
		return nil
	}
	return l.redis.Ping(ctx).Err()
}
