// Package wire 组装应用依赖
package wire

import (
	"context"
	"fmt"
	"time"

	"openspec-api/internal/application/catalog"
	"openspec-api/internal/application/contextfile"
	"openspec-api/internal/application/generation"
	"openspec-api/internal/application/workflow"
	"openspec-api/internal/config"
	"openspec-api/internal/domain/repository"
	"openspec-api/internal/domain/service"
	"openspec-api/internal/infrastructure/messaging"
	"openspec-api/internal/infrastructure/openrouter"
	"openspec-api/internal/infrastructure/persistence/memory"
	"openspec-api/internal/infrastructure/persistence/postgres"
	"openspec-api/internal/infrastructure/persistence/redis"
	"openspec-api/internal/interfaces/http/handler"
	"openspec-api/internal/interfaces/http/router"
	"openspec-api/internal/observability/llm"
	"openspec-api/internal/workflow/prompt"
	"openspec-api/pkg/logger"
)

// DataLayer 数据层依赖容器；未启用的组件为 nil
type DataLayer struct {
	RedisClient *redis.Client
	PgClient    *postgres.Client

	WorkflowStore repository.WorkflowStore
	Cache         repository.Cache
	RateLimiter   service.RateLimiter
	SpecRepo      repository.SpecDocumentRepository
	Producer      *messaging.Producer
}

// InitializeDataLayer 按配置初始化存储后端
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	dl := &DataLayer{}

	if cfg.Cache.Redis.Enabled {
		client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis: %w", err)
		}
		dl.RedisClient = client
		cleanups = append(cleanups, func() {
			if err := client.Close(); err != nil {
				logger.Error(ctx, "failed to close redis client", err)
			}
		})
	}

	if cfg.Database.Postgres.Enabled {
		client, err := postgres.NewClient(ctx, &cfg.Database.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		dl.PgClient = client
		dl.SpecRepo = postgres.NewSpecDocumentRepository(client)
		cleanups = append(cleanups, func() {
			if err := client.Close(); err != nil {
				logger.Error(ctx, "failed to close postgres client", err)
			}
		})
	}

	switch cfg.Workflow.Store {
	case "redis":
		dl.WorkflowStore = redis.NewWorkflowStore(dl.RedisClient, cfg.Workflow.SessionTTL)
	default:
		dl.WorkflowStore = memory.NewWorkflowStore(cfg.Workflow.SessionTTL)
	}

	switch cfg.Security.RateLimit.Backend {
	case "redis":
		dl.RateLimiter = redis.NewRateLimiter(dl.RedisClient)
	default:
		dl.RateLimiter = memory.NewRateLimiter(cfg.Security.RateLimit.Window)
	}

	// 模型目录缓存随 Redis 是否启用切换
	if dl.RedisClient != nil {
		dl.Cache = redis.NewCache(dl.RedisClient)
	} else {
		dl.Cache = memory.NewCache(cfg.Catalog.CacheTTL, 10*time.Minute)
	}

	if cfg.Messaging.RedisStream.Enabled {
		dl.Producer = messaging.NewProducer(dl.RedisClient.Redis(),
			messaging.Stream(cfg.Messaging.RedisStream.Stream), int64(cfg.Messaging.RedisStream.MaxLen))
	}

	logger.Info(ctx, "data layer initialized",
		"workflow_store", cfg.Workflow.Store,
		"rate_limit_backend", cfg.Security.RateLimit.Backend,
		"redis", dl.RedisClient != nil,
		"postgres", dl.PgClient != nil,
		"events", dl.Producer != nil,
	)
	return dl, cleanup, nil
}

// Services 应用服务集合
type Services struct {
	Generation   *generation.Service
	Workflow     *workflow.Service
	Archive      *workflow.ArchiveService
	Catalog      *catalog.Service
	ContextFiles *contextfile.Validator
}

// NewServices 组装应用服务
func NewServices(cfg *config.Config, dl *DataLayer) *Services {
	client := openrouter.NewClient(openrouter.ConfigFrom(cfg.OpenRouter))
	files := contextfile.NewValidator(cfg.ContextFiles)
	gen := generation.NewService(cfg.Generation, cfg.OpenRouter.APIKey, client, files, llm.NewMetricsRecorder())

	opts := []workflow.Option{workflow.WithDefaultModel(cfg.Generation.DefaultModel)}
	if dl.SpecRepo != nil {
		opts = append(opts, workflow.WithArchive(dl.SpecRepo))
	}
	if dl.Producer != nil {
		opts = append(opts, workflow.WithEvents(dl.Producer))
	}

	return &Services{
		Generation:   gen,
		Workflow:     workflow.NewService(dl.WorkflowStore, gen, prompt.NewRegistry(), files, opts...),
		Archive:      workflow.NewArchiveService(dl.SpecRepo),
		Catalog:      catalog.NewService(client, dl.Cache, cfg.Catalog.CacheTTL),
		ContextFiles: files,
	}
}

// NewHandlers 组装 HTTP 处理器
func NewHandlers(cfg *config.Config, dl *DataLayer, svc *Services) router.Handlers {
	health := handler.NewHealthHandler(cfg.App.Version)
	if dl.RedisClient != nil {
		health.Require("redis", dl.RedisClient)
	}
	// 归档是可选能力，数据库故障不影响就绪态
	if dl.PgClient != nil {
		health.Optional("postgres", dl.PgClient)
	}

	return router.Handlers{
		Health:       health,
		Generate:     handler.NewGenerateHandler(svc.Generation),
		Models:       handler.NewModelHandler(svc.Catalog),
		Workflows:    handler.NewWorkflowHandler(svc.Workflow),
		Export:       handler.NewExportHandler(svc.Workflow),
		ContextFiles: handler.NewContextFileHandler(svc.ContextFiles),
		Specs:        handler.NewSpecHandler(svc.Archive),
	}
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	dl, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := NewServices(cfg, dl)
	r := router.New(cfg, NewHandlers(cfg, dl, svc), dl.RateLimiter)
	return r, cleanup, nil
}
