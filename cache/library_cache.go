package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"songforge/logger"
	"songforge/model"

	"github.com/go-redis/redis/v8"
)

// PublicLibraryKey 公共曲库缓存键
const PublicLibraryKey = "library:public"

// LibraryCache caches the public library listing. A miss or a backend error
// both read as "not cached"; callers fall back to the database.
type LibraryCache interface {
	GetPublic(ctx context.Context) ([]*model.Track, bool)
	SetPublic(ctx context.Context, tracks []*model.Track)
	Invalidate(ctx context.Context) error
}

// RedisLibraryCache 基于 Redis 的实现
type RedisLibraryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLibraryCache creates a cache entry that expires after ttl.
func NewRedisLibraryCache(client *redis.Client, ttl time.Duration) *RedisLibraryCache {
	return &RedisLibraryCache{client: client, ttl: ttl}
}

func (c *RedisLibraryCache) GetPublic(ctx context.Context) ([]*model.Track, bool) {
	data, err := c.client.Get(ctx, PublicLibraryKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("[Cache] 读取公共曲库缓存失败", logger.ErrorField(err))
		}
		return nil, false
	}
	var tracks []*model.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		logger.Warn("[Cache] 公共曲库缓存损坏", logger.ErrorField(err))
		return nil, false
	}
	return tracks, true
}

func (c *RedisLibraryCache) SetPublic(ctx context.Context, tracks []*model.Track) {
	data, err := json.Marshal(tracks)
	if err != nil {
		logger.Warn("[Cache] 序列化公共曲库失败", logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, PublicLibraryKey, data, c.ttl).Err(); err != nil {
		logger.Warn("[Cache] 写入公共曲库缓存失败", logger.ErrorField(err))
	}
}

// Invalidate 在曲库写操作后调用
func (c *RedisLibraryCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, PublicLibraryKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate public library cache: %w", err)
	}
	return nil
}

// NoopLibraryCache never caches. Used when Redis is not configured.
type NoopLibraryCache struct{}

func (NoopLibraryCache) GetPublic(context.Context) ([]*model.Track, bool) { return nil, false }
func (NoopLibraryCache) SetPublic(context.Context, []*model.Track)        {}
func (NoopLibraryCache) Invalidate(context.Context) error                 { return nil }
