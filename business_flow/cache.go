package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// jsonCache stores JSON documents in Redis. A nil client turns every call
// into a miss so flows work unchanged without a cache.
type jsonCache struct {
	rc *redis.Client
}

func (c jsonCache) enabled() bool {
	return c.rc != nil
}

// get decodes the cached document into dst and reports a hit
func (c jsonCache) get(ctx context.Context, key string, dst any) bool {
	if c.rc == nil {
		return false
	}
	bs, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache get %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(bs, dst); err != nil {
		log.Printf("cache entry %s is corrupt, dropping it: %v", key, err)
		_ = c.rc.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c jsonCache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.rc == nil || ttl <= 0 {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache encode %s failed: %v", key, err)
		return
	}
	if err := c.rc.Set(ctx, key, bs, ttl).Err(); err != nil {
		log.Printf("cache set %s failed: %v", key, err)
	}
}

// invalidate deletes every key matching the glob pattern
func (c jsonCache) invalidate(ctx context.Context, pattern string) {
	if c.rc == nil {
		return
	}
	iter := c.rc.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache scan %s failed: %v", pattern, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rc.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache invalidate %s failed: %v", pattern, err)
	}
}
