package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/electronics-store/internal/models"
)

const featuredKey = "items:featured"

type RedisItemCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisItemCache(client *redis.Client, ttl time.Duration) *RedisItemCache {
	return &RedisItemCache{
		client:  client,
		baseTTL: ttl,
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func itemKey(id int64) string {
	return fmt.Sprintf("item:%d", id)
}

// ttl spreads expirations so a burst of fills does not expire together.
func (r *RedisItemCache) ttl() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/5) + 1))
	return r.baseTTL + jitter
}

func (r *RedisItemCache) get(ctx context.Context, key string, dest any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisItemCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisItemCache) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	if err := r.get(ctx, itemKey(id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *RedisItemCache) SetItem(ctx context.Context, item *models.Item) error {
	return r.set(ctx, itemKey(item.ID), item)
}

func (r *RedisItemCache) GetFeatured(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := r.get(ctx, featuredKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RedisItemCache) SetFeatured(ctx context.Context, items []models.Item) error {
	return r.set(ctx, featuredKey, items)
}

func (r *RedisItemCache) InvalidateItem(ctx context.Context, id int64) error {
	if err := r.client.Del(ctx, itemKey(id), featuredKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
