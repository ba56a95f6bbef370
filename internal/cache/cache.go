// Package cache connects to Redis and caches resolved short links.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const linkKeyPrefix = "funnel:link:"

// Connect returns a Redis client for cfg, or nil when no address is configured.
func Connect(ctx context.Context, cfg models.RedisConfig) (redis.UniversalClient, error) {
	if cfg.Addr == "" {
		zap.L().Info("Redis address not configured, link cache disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     1 * time.Second,
		ReadTimeout:     400 * time.Millisecond,
		WriteTimeout:    400 * time.Millisecond,
		PoolTimeout:     750 * time.Millisecond,
		ConnMaxIdleTime: 90 * time.Second,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			_ = cn.ClientSetName(ctx, "iamblessed-funnel").Err()
			return nil
		},
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.Addr, err)
	}

	zap.L().Info("Connected to Redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return rdb, nil
}

// LinkCache stores short links as JSON under funnel:link:<slug>.
type LinkCache struct {
	rdb redis.UniversalClient
}

func NewLinkCache(rdb redis.UniversalClient) *LinkCache {
	return &LinkCache{rdb: rdb}
}

// Get returns the cached link, or nil on a miss.
func (c *LinkCache) Get(ctx context.Context, slug string) (*models.ShortLink, error) {
	data, err := c.rdb.Get(ctx, linkKeyPrefix+slug).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("link cache get: %w", err)
	}

	var link models.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("link cache decode: %w", err)
	}
	return &link, nil
}

func (c *LinkCache) Set(ctx context.Context, link models.ShortLink, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("link cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, linkKeyPrefix+link.Slug, data, ttl).Err(); err != nil {
		return fmt.Errorf("link cache set: %w", err)
	}
	return nil
}

func (c *LinkCache) Delete(ctx context.Context, slug string) error {
	if err := c.rdb.Del(ctx, linkKeyPrefix+slug).Err(); err != nil {
		return fmt.Errorf("link cache delete: %w", err)
	}
	return nil
}
