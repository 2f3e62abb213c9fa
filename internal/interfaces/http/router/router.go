// Package router 提供 HTTP 路由配置
package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openspec-api/internal/config"
	"openspec-api/internal/domain/service"
	"openspec-api/internal/interfaces/http/handler"
	"openspec-api/internal/interfaces/http/middleware"
	"openspec-api/pkg/logger"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health       *handler.HealthHandler
	Generate     *handler.GenerateHandler
	Models       *handler.ModelHandler
	Workflows    *handler.WorkflowHandler
	Export       *handler.ExportHandler
	ContextFiles *handler.ContextFileHandler
	Specs        *handler.SpecHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  service.RateLimiter
}

// New 创建新的路由器；limiter 为 nil 时不限流
func New(cfg *config.Config, handlers Handlers, limiter service.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.Server.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.Server.HTTP.TrustedProxies); err != nil {
			logger.Warn(context.Background(), "invalid trusted proxies, ignoring", "error", err.Error())
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// probePaths 探针与指标路径，不产生 span 与访问日志
func (r *Router) probePaths() []string {
	return []string{"/health", "/ready", "/live", r.metricsPath()}
}

func (r *Router) metricsPath() string {
	if p := r.cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestContext())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, r.probePaths()...))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.probePaths()...))
	}

	r.engine.Use(middleware.BodyLimit(r.cfg.Server.HTTP.MaxBodyBytes))
}

// rateLimited 生成类接口的限流中间件
func (r *Router) rateLimited() gin.HandlerFunc {
	rl := r.cfg.Security.RateLimit
	return middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:  rl.Enabled,
		Backend:  rl.Backend,
		Requests: rl.Requests,
		Window:   rl.Window,
	}, r.limiter)
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	if h.Health != nil {
		r.engine.GET("/health", h.Health.Health)
		r.engine.GET("/ready", h.Health.Ready)
		r.engine.GET("/live", h.Health.Live)
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	limited := r.rateLimited()

	api := r.engine.Group("/api")
	RegisterAPIRoutes(api, h, limited)

	v1 := r.engine.Group("/v1")
	RegisterV1Routes(v1, h, limited)
}
