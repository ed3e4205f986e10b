package cache

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisEventCache(client *redis.Client) *RedisEventCache {
	return &RedisEventCache{
		client:  client,
		baseTTL: 24 * time.Hour,
	}
}

type RedisEventCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisEventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, cacheKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (r RedisEventCache) MarkSeen(ctx context.Context, eventID string) error {
	jitter := time.Duration(rand.Intn(60)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, cacheKey(eventID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(eventID string) string {
	return fmt.Sprintf("webhook-event:%s", eventID)
}
