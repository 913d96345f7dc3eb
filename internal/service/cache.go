package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

var cacheJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache is the Redis-backed result cache. A nil Cache (no Redis URL
// configured) is valid and behaves as permanently disabled.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// cacheEntry is the stored value for one goal/provider/model combination.
type cacheEntry struct {
	Report   *schemas.RunReport `json:"report"`
	CachedAt time.Time          `json:"cached_at"`
}

// NewCache connects to Redis when a URL is configured; otherwise it returns
// (nil, nil) and the service runs uncached.
func NewCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Cache{client: client, ttl: cfg.TTL, log: logger.Named("cache")}, nil
}

// Enabled reports whether a Redis backend is attached.
func (c *Cache) Enabled() bool { return c != nil && c.client != nil }

// Connected reports whether the backend currently answers pings.
func (c *Cache) Connected(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}
	return c.client.Ping(ctx).Err() == nil
}

// Key derives the cache key for a request. Only the fields that change the
// outcome participate: the goal and the effective provider and model.
func (c *Cache) Key(req schemas.BrowseRequest) string {
	payload, _ := cacheJSON.Marshal(struct {
		Goal        string `json:"goal"`
		LLMModel    string `json:"llm_model"`
		LLMProvider string `json:"llm_provider"`
	}{req.Goal, req.LLMModel, req.LLMProvider})
	sum := sha256.Sum256(payload)
	return "browse:" + hex.EncodeToString(sum[:])
}

// Get returns the cached report for req, or (nil, false) on a miss. Backend
// errors are logged and treated as misses.
func (c *Cache) Get(ctx context.Context, req schemas.BrowseRequest) (*schemas.RunReport, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.Key(req)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Cache read failed.", zap.Error(err))
		}
		return nil, false
	}
	var entry cacheEntry
	if err := cacheJSON.Unmarshal(data, &entry); err != nil {
		c.log.Warn("Discarding undecodable cache entry.", zap.Error(err))
		return nil, false
	}
	return entry.Report, entry.Report != nil
}

// Set stores a successful report for req. Failures are logged, not returned;
// caching is best effort.
func (c *Cache) Set(ctx context.Context, req schemas.BrowseRequest, report *schemas.RunReport) {
	if !c.Enabled() || report == nil {
		return
	}
	data, err := cacheJSON.Marshal(cacheEntry{Report: report, CachedAt: time.Now().UTC()})
	if err != nil {
		c.log.Warn("Cache entry serialization failed.", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.Key(req), data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed.", zap.Error(err))
	}
}

// Flush removes every cached result.
func (c *Cache) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return errors.New("cache is not enabled")
	}
	var deleted int
	iter := c.client.Scan(ctx, 0, "browse:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("deleting cache key: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cache keys: %w", err)
	}
	c.log.Info("Result cache flushed.", zap.Int("deleted", deleted))
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
