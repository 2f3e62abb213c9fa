package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"openspec-api/internal/domain/service"
)

// RateLimiter 固定窗口限流器：首个请求 INCR 后设置 PEXPIRE，PTTL 给出重置时间
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, prefix: "ratelimit", now: time.Now}
}

// Allow 计数并判定是否放行
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*service.RateLimitDecision, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)
	defer span.End()

	fullKey := l.prefix + ":" + key

	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := l.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pttl = pipe.PTTL(ctx, fullKey)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	count := incr.Val()
	ttl := pttl.Val()
	// 新窗口（或丢失过期时间的键）需要补上 PEXPIRE
	if ttl < 0 {
		if err := l.client.rdb.PExpire(ctx, fullKey, window).Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		ttl = window
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	decision := &service.RateLimitDecision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}

	span.SetAttributes(
		attribute.Int64("ratelimit.current_count", count),
		attribute.Bool("ratelimit.allowed", decision.Allowed),
	)
	return decision, nil
}

// Reset 重置限流计数
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "ratelimit.Reset")
	span.SetAttributes(attribute.String("ratelimit.key", key))
	defer span.End()

	return l.client.rdb.Del(ctx, l.prefix+":"+key).Err()
}
