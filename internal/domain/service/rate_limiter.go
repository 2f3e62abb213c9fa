package service

import (
	"context"
	"time"
)

// RateLimitDecision 一次限流判定结果
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt 当前窗口结束时间
	ResetAt time.Time
}

// RetryAfter 距窗口重置的剩余时间，向上取整到秒，最少 1 秒
func (d *RateLimitDecision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	secs := (wait + time.Second - 1) / time.Second
	return secs * time.Second
}

// RateLimiter 固定窗口限流器
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitDecision, error)
}
