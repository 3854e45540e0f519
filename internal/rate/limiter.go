package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a fixed-window counter policy: at most Limit hits per Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// Enabled reports whether the window enforces anything.
func (w Window) Enabled() bool {
	return w.Limit > 0 && w.Period > 0
}

// Limiter counts hits per key in Redis using INCR with an EXPIRE on the first hit.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Hit records one hit for key and returns ErrRateLimited once the window is exhausted.
// A disabled window or a nil limiter never limits.
func (l *Limiter) Hit(ctx context.Context, key string, w Window) error {
	if l == nil || !w.Enabled() {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, key, w.Period)
	if err != nil {
		return err
	}
	if count > int64(w.Limit) {
		return ErrRateLimited
	}

	return nil
}

// Count returns the hits recorded for key in the current window.
// Missing keys return zero.
func (l *Limiter) Count(ctx context.Context, key string) (int, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counters for keys.
func (l *Limiter) Reset(ctx context.Context, keys ...string) error {
	if l == nil || len(keys) == 0 {
		return nil
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
