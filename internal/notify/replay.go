package notify

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisReplayProtector enforces at-most-one webhook delivery per
// endpoint/event pair within the TTL window, using Redis SETNX.
type RedisReplayProtector struct {
	Client *redis.Client
}

// Acquire claims the delivery key for the TTL. A false result means another
// worker already sent this event to the endpoint. Without a client the guard
// is disabled and every delivery proceeds.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release drops the guard key so the delivery can be retried early.
func (r RedisReplayProtector) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}
