package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

const metadataPrefix = "metadata:"

// Cache stores analyzer results and rate limit counters in Redis
type Cache struct {
	client      *redis.Client
	metadataTTL time.Duration
}

// New connects to Redis and verifies the connection
func New(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, metadataTTL: cfg.MetadataTTL}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func metadataKey(mediaID string) string {
	return metadataPrefix + mediaID
}

// GetMetadata returns the cached analysis of item. A miss, or an entry
// analyzed from a different location, returns (nil, nil).
func (c *Cache) GetMetadata(ctx context.Context, item models.MediaItem) (*models.MetadataContainer, error) {
	data, err := c.client.Get(ctx, metadataKey(item.ID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheAccess("metadata", false)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get metadata from cache: %w", err)
	}

	var meta models.MetadataContainer
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	if meta.Record.Location != item.Location {
		metrics.RecordCacheAccess("metadata", false)
		return nil, nil
	}

	metrics.RecordCacheAccess("metadata", true)
	return &meta, nil
}

// SetMetadata caches the analysis of item
func (c *Cache) SetMetadata(ctx context.Context, item models.MediaItem, meta *models.MetadataContainer) error {
	if meta == nil {
		return nil
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return c.client.Set(ctx, metadataKey(item.ID), data, c.metadataTTL).Err()
}

// DeleteMetadata removes the cached analysis of a media item
func (c *Cache) DeleteMetadata(ctx context.Context, mediaID string) error {
	return c.client.Del(ctx, metadataKey(mediaID)).Err()
}

// InvalidateMetadata removes every cached analysis and returns how many
// entries were dropped
func (c *Cache) InvalidateMetadata(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, metadataPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
		removed++
	}
	return removed, iter.Err()
}

// CheckRateLimit counts a request against key in a fixed window and
// reports whether it is within limit
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := "ratelimit:" + key

	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	return count <= limit, nil
}
