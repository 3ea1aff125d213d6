// Package cache keeps the paid-entry counts the public site polls for its
// sold-out banners off the database. Expiry is TTL-based; a slightly stale
// count is acceptable there.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Counts struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCounts wraps a Redis client. A nil client yields a pass-through cache,
// so the service degrades to direct counts when Redis is not configured.
func NewCounts(client *redis.Client, ttl time.Duration) *Counts {
	return &Counts{client: client, ttl: ttl}
}

func key(event string) string {
	return "entries:paid_count:" + event
}

func (c *Counts) Get(ctx context.Context, event string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	n, err := c.client.Get(ctx, key(event)).Int64()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("event", event).Msg("cache: failed to read paid entry count")
		}
		return 0, false
	}
	return n, true
}

func (c *Counts) Set(ctx context.Context, event string, n int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key(event), n, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("cache: failed to store paid entry count")
	}
}

// Invalidate drops the cached count after a paid transition so the next
// poll sees the new number immediately instead of waiting out the TTL.
func (c *Counts) Invalidate(ctx context.Context, event string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key(event)).Err(); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("cache: failed to invalidate paid entry count")
	}
}
