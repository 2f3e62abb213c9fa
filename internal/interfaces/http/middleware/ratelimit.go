package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/domain/service"
	"openspec-api/internal/interfaces/http/dto"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
	"openspec-api/pkg/metrics"
)

// 限流响应头
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// Backend 仅用于指标标签
	Backend string
	// Requests 每个窗口允许的请求数
	Requests int
	Window   time.Duration
	// KeyPrefix 限流 Key 前缀
	KeyPrefix string
	// Now 测试注入
	Now func() time.Time
}

// RateLimit 按客户端 IP 固定窗口限流；限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter service.RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.Requests <= 0 {
		cfg.Requests = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ip"
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := cfg.KeyPrefix + ":" + c.ClientIP()

		decision, err := limiter.Allow(ctx, key, cfg.Requests, cfg.Window)
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable, allowing request", "error", err.Error())
			metrics.RateLimitDecisions.WithLabelValues(cfg.Backend, "error").Inc()
			c.Next()
			return
		}

		c.Header(HeaderRateLimit, strconv.Itoa(decision.Limit))
		c.Header(HeaderRateRemaining, strconv.Itoa(decision.Remaining))
		c.Header(HeaderRateReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			metrics.RateLimitDecisions.WithLabelValues(cfg.Backend, "limited").Inc()
			retryAfter := decision.RetryAfter(cfg.Now())
			c.Header("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
			logger.Info(ctx, "rate limit exceeded", "limit", decision.Limit, "retry_after_s", int(retryAfter/time.Second))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.APIErrorResponse{Error: dto.APIErrorBody{
				Code:      string(apperrors.CodeRateLimited),
				Message:   "Too many requests. Please try again in " + strconv.Itoa(int(retryAfter/time.Second)) + " seconds.",
				Retryable: true,
			}})
			return
		}

		metrics.RateLimitDecisions.WithLabelValues(cfg.Backend, "allowed").Inc()
		c.Next()
	}
}
