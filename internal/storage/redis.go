package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// RedisCache keeps a redis set of seen URLs in front of a durable Store.
// Redis answers positive lookups; misses and redis failures fall through to
// the backing store, which stays authoritative.
type RedisCache struct {
	next   Store
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps next with a seen-set cache at cfg.Addr.
func NewRedisCache(next Store, cfg *config.RedisConfig, logger *slog.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	return newRedisCache(next, client, cfg.Key, cfg.TTL, logger)
}

func newRedisCache(next Store, client *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if key == "" {
		key = "newsgoat:seen"
	}
	return &RedisCache{
		next:   next,
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With("component", "redis_cache"),
	}
}

func (c *RedisCache) Name() string { return "redis+" + c.next.Name() }

func (c *RedisCache) Exists(ctx context.Context, url string) (bool, error) {
	hit, err := c.client.SIsMember(ctx, c.key, url).Result()
	if err != nil {
		c.logger.Warn("redis lookup failed, using backing store", "url", url, "error", err)
	} else if hit {
		return true, nil
	}

	found, err := c.next.Exists(ctx, url)
	if err != nil {
		return false, err
	}
	if found {
		c.remember(ctx, url)
	}
	return found, nil
}

func (c *RedisCache) Insert(ctx context.Context, rec *types.MediaRecord) error {
	err := c.next.Insert(ctx, rec)
	if err == nil || errors.Is(err, types.ErrDuplicate) {
		c.remember(ctx, rec.URL)
	}
	return err
}

func (c *RedisCache) Close() error {
	return errors.Join(c.client.Close(), c.next.Close())
}

// remember adds url to the seen set. Failures only cost a later cache miss.
func (c *RedisCache) remember(ctx context.Context, url string) {
	if err := c.client.SAdd(ctx, c.key, url).Err(); err != nil {
		c.logger.Warn("redis sadd failed", "url", url, "error", err)
		return
	}
	if c.ttl > 0 {
		if err := c.client.Expire(ctx, c.key, c.ttl).Err(); err != nil {
			c.logger.Warn("redis expire failed", "error", err)
		}
	}
}
