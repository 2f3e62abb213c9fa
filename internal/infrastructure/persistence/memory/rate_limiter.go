// Package memory 提供进程内的限流、缓存与工作流存储实现
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"openspec-api/internal/domain/service"
)

// rateWindow 单个键的固定窗口计数
type rateWindow struct {
	count     int
	resetTime time.Time
}

// RateLimiter 进程内固定窗口限流器；过期窗口在下次请求时惰性重置
type RateLimiter struct {
	mu      sync.Mutex
	windows *cache.Cache
	now     func() time.Time
}

// NewRateLimiter 创建限流器，cleanup 为过期窗口清理周期
func NewRateLimiter(cleanup time.Duration) *RateLimiter {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &RateLimiter{
		windows: cache.New(cache.NoExpiration, cleanup),
		now:     time.Now,
	}
}

// Allow 计数并判定是否放行
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (*service.RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := &rateWindow{resetTime: now.Add(window)}
	if x, found := l.windows.Get(key); found {
		if existing := x.(*rateWindow); now.Before(existing.resetTime) {
			w = existing
		}
	}
	w.count++
	// 过期时间与窗口对齐，清理协程据此回收
	l.windows.Set(key, w, w.resetTime.Sub(now))

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return &service.RateLimitDecision{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   w.resetTime,
	}, nil
}

// Reset 重置限流计数
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows.Delete(key)
}
