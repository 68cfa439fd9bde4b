package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter caps the rate of calls to the external translation and
// classification services. Exceeding the limit makes callers wait, not fail.
type Limiter interface {
	// Allow reports whether one more call under key fits into the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Wait blocks until a call under key is allowed or the context ends.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error

	// Reset clears the counter for a key.
	Reset(ctx context.Context, key string) error
}

// RedisLimiter implements a fixed-window counter on Redis INCR + EXPIRE so
// the cap holds across processes. When Redis is unreachable it fails open:
// an external-service limiter must not take the relay down with it.
type RedisLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLimiter(client *redis.Client, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, logger: logger}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request",
			zap.String("key", key), zap.Error(err))
		return true, nil
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit expiry", zap.String("key", key), zap.Error(err))
		}
	}
	return count <= int64(limit), nil
}

func (l *RedisLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		ok, err := l.Allow(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(window / time.Duration(limit+1)):
		}
	}
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, fmt.Sprintf("ratelimit:%s", key)).Err()
}
