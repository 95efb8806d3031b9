package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is an expiring counter backed by Redis. The counter for a key is
// created on first increment and expires window seconds later, so limits
// reset automatically after a period of inactivity. INCR is atomic, which
// closes the check-then-set race a cached read-modify-write would have.
type Limiter struct {
	client *redis.Client
	prefix string
}

// New constructs a limiter. The prefix namespaces all counter keys.
func New(client *redis.Client, prefix string) *Limiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Limiter{client: client, prefix: prefix}
}

// Allow increments the counter for key and reports whether the caller is
// still within max attempts for the window. The window starts at the first
// increment, not the last.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	full := l.key(key)

	count, err := l.client.Incr(ctx, full).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, full, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set counter expiry %s: %w", key, err)
		}
	}

	return count <= int64(max), nil
}

// Count returns the current counter value without incrementing it. A missing
// key counts as zero.
func (l *Limiter) Count(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Get(ctx, l.key(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return count, nil
}

// Reset removes the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset counter %s: %w", key, err)
	}
	return nil
}

func (l *Limiter) key(key string) string {
	return l.prefix + ":" + key
}
