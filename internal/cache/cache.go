// Package cache keeps rating snapshots and analysis results in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned when a key is absent or caching is disabled.
var ErrCacheMiss = errors.New("cache miss")

const (
	keyPrefix  = "plan-auditor:"
	ratingsKey = keyPrefix + "ratings"
	pingWait   = 5 * time.Second
)

// NewRedis returns a connected Redis client.
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingWait)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Cache stores JSON values. A Cache with a nil client misses every read and
// drops every write.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New wraps client. ttl applies to Set calls that pass 0.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get retrieves and unmarshals the cached value into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if !c.Enabled() {
		return ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it. A zero ttl uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if ttl == 0 {
		ttl = c.ttl
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Ratings returns the cached rating snapshot.
func (c *Cache) Ratings(ctx context.Context) (*types.RatingSet, error) {
	var set types.RatingSet
	if err := c.Get(ctx, ratingsKey, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// SetRatings stores the rating snapshot without expiry; it is replaced on refresh.
func (c *Cache) SetRatings(ctx context.Context, set *types.RatingSet) error {
	if !c.Enabled() {
		return nil
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal ratings: %w", err)
	}
	if err := c.client.Set(ctx, ratingsKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", ratingsKey, err)
	}
	c.logger.Debug("ratings cached", zap.Int("courses", len(set.Courses)))
	return nil
}

// AnalysisKey derives the cache key for an analysis of the given page.
func AnalysisKey(html string) string {
	sum := sha256.Sum256([]byte(html))
	return keyPrefix + "analysis:" + hex.EncodeToString(sum[:])
}
