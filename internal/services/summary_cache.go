package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const generationKey = "ledger:generation"

// SummaryCache memoizes report results in Redis. Keys embed a generation
// counter that every ledger mutation bumps, so stale reports are never read
// and simply expire. A nil cache or nil client disables caching.
type SummaryCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSummaryCache(redisClient *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{redis: redisClient, ttl: ttl}
}

func (c *SummaryCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Key builds a cache key for the current generation.
// It reports false when the cache is unavailable.
func (c *SummaryCache) Key(ctx context.Context, namespace string, parts ...string) (string, bool) {
	if !c.enabled() {
		return "", false
	}

	gen, err := c.redis.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		log.Printf("[CACHE] Failed to read generation: %v", err)
		return "", false
	}

	return "ledger:" + namespace + ":" + strconv.FormatInt(gen, 10) + ":" + strings.Join(parts, ":"), true
}

// Get decodes the cached value under key into dst and reports a hit
func (c *SummaryCache) Get(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("[CACHE] Failed to read %s: %v", key, err)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("[CACHE] Dropping undecodable entry %s: %v", key, err)
		return false
	}
	return true
}

// Set stores v under key for the configured TTL
func (c *SummaryCache) Set(ctx context.Context, key string, v any) {
	if !c.enabled() {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[CACHE] Failed to encode %s: %v", key, err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("[CACHE] Failed to write %s: %v", key, err)
	}
}

// Invalidate retires every cached report by moving to a new generation
func (c *SummaryCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.redis.Incr(ctx, generationKey).Err(); err != nil {
		log.Printf("[CACHE] Failed to bump generation: %v", err)
	}
}
