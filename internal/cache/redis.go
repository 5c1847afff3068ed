// Package cache stores completion answers in Redis so identical redacted
// prompts do not hit the remote endpoint twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/logger"
	"github.com/raaihank/codesense/internal/metrics"
	"go.uber.org/zap"
)

// ResponseCache handles Redis-based caching of completion answers
type ResponseCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *logger.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewResponseCache creates a new Redis-based response cache
func NewResponseCache(cfg config.CacheConfig, log *logger.Logger) (*ResponseCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewWithClient(client, cfg, log)
	c.logger.Info("Response cache initialized successfully",
		zap.String("redis_url", logger.MaskURL(cfg.RedisURL)),
		zap.Duration("ttl", c.ttl))

	return c, nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client redis.UniversalClient, cfg config.CacheConfig, log *logger.Logger) *ResponseCache {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "codesense"
	}
	return &ResponseCache{
		client:    client,
		keyPrefix: prefix,
		ttl:       cfg.TTL,
		logger:    log.WithComponent("cache"),
	}
}

// Get returns the cached answer for model and prompt. Redis errors count as
// misses so a cache outage never blocks an explanation.
func (c *ResponseCache) Get(ctx context.Context, model, prompt string) (string, bool) {
	key := c.Key(model, prompt)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.recordMiss()
		c.logger.Debug("Cache miss", zap.String("key", key))
		return "", false
	} else if err != nil {
		c.recordMiss()
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return "", false
	}

	var cached CachedResponse
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		c.logger.Error("Failed to unmarshal cached response", zap.Error(err))
		// Delete corrupted cache entry
		c.client.Del(ctx, key)
		c.recordMiss()
		return "", false
	}

	c.hits.Add(1)
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	c.logger.Debug("Cache hit", zap.String("key", key), zap.Time("cached_at", cached.CachedAt))
	return cached.Answer, true
}

// Set stores answer under model and prompt
func (c *ResponseCache) Set(ctx context.Context, model, prompt, answer string) error {
	key := c.Key(model, prompt)

	data, err := json.Marshal(CachedResponse{
		Model:    model,
		Answer:   answer,
		CachedAt: time.Now().UTC(),
		TTL:      int64(c.ttl.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response for caching: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to cache response", zap.Error(err))
		return fmt.Errorf("failed to cache response: %w", err)
	}

	c.logger.Debug("Response cached successfully", zap.String("key", key))
	return nil
}

// GetStats returns cache performance statistics
func (c *ResponseCache) GetStats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to get Redis key count: %w", err)
	}
	stats.TotalKeys = keys

	return stats, nil
}

// Clear removes all cached responses
func (c *ResponseCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+":resp:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *ResponseCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Key derives the cache key from model and prompt. Prompts are hashed so
// redacted text never appears in key names.
func (c *ResponseCache) Key(model, prompt string) string {
	hasher := sha256.New()
	hasher.Write([]byte(model))
	hasher.Write([]byte{0})
	hasher.Write([]byte(prompt))

	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:resp:%s", c.keyPrefix, hash[:32])
}

func (c *ResponseCache) recordMiss() {
	c.misses.Add(1)
	metrics.CacheLookups.WithLabelValues("miss").Inc()
}
