// Package openrouter 提供 OpenRouter REST API 客户端
package openrouter

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"openspec-api/internal/config"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
	"openspec-api/pkg/metrics"
)

var tracer = otel.Tracer("openrouter")

// Config 客户端配置
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Referer    string
	Title      string
}

// ConfigFrom 从应用配置构建客户端配置
func ConfigFrom(cfg config.OpenRouterConfig) Config {
	return Config{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Referer:    cfg.Referer,
		Title:      cfg.Title,
	}
}

// Client OpenRouter 客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建 OpenRouter 客户端
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &attributionTransport{
				base:    http.DefaultTransport,
				referer: cfg.Referer,
				title:   cfg.Title,
			},
		},
	}
}

// attributionTransport 为每个请求附加 OpenRouter 应用归属头
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.referer != "" {
		r.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		r.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(r)
}

// withRetry 线性重试：仅对可重试错误（429 / 5xx / 网络错误）重试
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var last *apperrors.AppError
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = classify(err)

		if !last.Retryable || attempt == c.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := c.cfg.RetryDelay * time.Duration(attempt)
		logger.Warn(ctx, "openrouter call failed, retrying",
			"operation", op,
			"attempt", attempt,
			"code", last.Code,
			"delay_ms", delay.Milliseconds(),
		)
		metrics.LLMRetriesTotal.WithLabelValues(op).Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return classify(ctx.Err())
		case <-timer.C:
		}
	}
	return last
}
