package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"openspec-api/internal/config"
)

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	defaultCORSHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}

	// exposedHeaders 浏览器端需要读取的响应头：限流提示与导出文件名
	exposedHeaders = []string{
		RequestIDHeader, "X-Trace-ID",
		HeaderRateLimit, HeaderRateRemaining, HeaderRateReset, "Retry-After",
		"Content-Disposition",
	}
)

// CORS 跨域中间件；来源支持 https://*.example.com 形式的子域通配
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	allowAll := slices.Contains(origins, "*")

	cc := cors.Config{
		AllowMethods:  methods,
		AllowHeaders:  headers,
		ExposeHeaders: exposedHeaders,
		AllowWildcard: true,
		MaxAge:        12 * time.Hour,
	}
	if allowAll {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}
