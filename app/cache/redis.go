package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/indexsync"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 5 * time.Minute

	versionKey = "search:version"
)

// Cache stores search result pages in Redis.
// Keys embed a store version that every article mutation bumps, so a write
// invalidates all cached pages at once and stale entries simply expire.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)
	return &Cache{client: client, ttl: DefaultTTL}, nil
}

func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// CachedPage is one search page with the backend that produced it.
type CachedPage struct {
	Page    news.Page `json:"page"`
	Backend string    `json:"backend"`
}

// GetPage returns the page cached under filterKey for the current store version.
func (c *Cache) GetPage(ctx context.Context, filterKey string) (*CachedPage, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, false, err
	}

	key := GeneratePageKey(version, filterKey)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var page CachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		// Undecodable entries are dropped and treated as a miss.
		c.client.Del(ctx, key)
		return nil, false, nil
	}
	return &page, true, nil
}

func (c *Cache) SetPage(ctx context.Context, filterKey string, page CachedPage) error {
	version, err := c.version(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}

	key := GeneratePageKey(version, filterKey)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Invalidate bumps the store version.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("failed to bump cache version: %w", err)
	}
	return nil
}

func (c *Cache) ArticleChanged(articleID int64, event news.Lifecycle) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Invalidate(ctx); err != nil {
		slog.Warn("Failed to invalidate search cache", "article_id", articleID, "event", event, "error", err)
	}
}

// IndexChanged drops pages that may have been answered from the index before it caught up.
func (c *Cache) IndexChanged(ids []int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Invalidate(ctx); err != nil {
		slog.Warn("Failed to invalidate search cache", "articles", len(ids), "error", err)
	}
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return version, nil
}

// GeneratePageKey builds the key of one cached page.
func GeneratePageKey(version int64, filterKey string) string {
	hash := sha256.Sum256([]byte(filterKey))
	return fmt.Sprintf("search:v%d:%x", version, hash[:8])
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Health returns cache health information
func (c *Cache) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if size, err := c.client.DBSize(ctx).Result(); err == nil {
		health["key_count"] = size
	}
	return health
}

var (
	_ news.ArticleObserver    = (*Cache)(nil)
	_ indexsync.IndexObserver = (*Cache)(nil)
)
