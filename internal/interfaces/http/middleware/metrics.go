package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"openspec-api/pkg/logger"
	"openspec-api/pkg/metrics"
)

// Metrics Prometheus 指标采集与访问日志中间件
func Metrics(skipPaths ...string) gin.HandlerFunc {
	skip := newPathSet(skipPaths)

	return func(c *gin.Context) {
		if skip.has(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		method := c.Request.Method

		c.Next()

		// 路由匹配发生在 Next 之后才能拿到模板路径
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := c.Writer.Status()
		duration := time.Since(start)

		if reqSize := float64(c.Request.ContentLength); reqSize > 0 {
			metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(reqSize)
		}
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
		if respSize := float64(c.Writer.Size()); respSize > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(respSize)
		}

		args := []any{
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
		}
		switch {
		case status >= 500:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			logger.Error(c.Request.Context(), "request failed", err, args...)
		case status >= 400:
			logger.Warn(c.Request.Context(), "request rejected", args...)
		default:
			logger.Debug(c.Request.Context(), "request served", args...)
		}
	}
}
