package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"openspec-api/internal/domain/repository"
)

// Cache 进程内字节缓存
type Cache struct {
	c *cache.Cache
}

// NewCache 创建缓存
func NewCache(defaultTTL, cleanup time.Duration) *Cache {
	return &Cache{c: cache.New(defaultTTL, cleanup)}
}

// Get 未命中返回 repository.ErrCacheMiss
func (m *Cache) Get(_ context.Context, key string) ([]byte, error) {
	if x, found := m.c.Get(key); found {
		return x.([]byte), nil
	}
	return nil, repository.ErrCacheMiss
}

// Set ttl<=0 时使用默认过期时间
func (m *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	m.c.Set(key, buf, ttl)
	return nil
}

func (m *Cache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}
