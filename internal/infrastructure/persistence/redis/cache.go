package redis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"openspec-api/internal/domain/repository"
)

// cacheNamespace 与工作流、限流键隔开
const cacheNamespace = "openspec-cache:"

// Cache 基于 Redis 的 repository.Cache，多实例共享模型目录
type Cache struct {
	client *Client
}

// NewCache 创建缓存
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) key(k string) string {
	return cacheNamespace + k
}

// Get 未命中返回 repository.ErrCacheMiss
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, c.key(key)).Bytes()
	switch {
	case IsNil(err):
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, repository.ErrCacheMiss
	case err != nil:
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("cache.bytes", len(val)))
	return val, nil
}

// Set ttl 为 0 表示不过期
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "cache.Set",
		trace.WithAttributes(attribute.String("cache.key", key), attribute.Int("cache.bytes", len(value))))
	defer span.End()

	if err := c.client.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Delete 删除一个或多个键，键不存在不报错
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.rdb.Del(ctx, full...).Err()
}
