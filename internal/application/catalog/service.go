// Package catalog 提供带缓存的 OpenRouter 模型目录查询
package catalog

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
	"openspec-api/pkg/metrics"
)

const cacheKey = "openspec:catalog:models:v1"

// loadTimeout 合并加载的上限，独立于发起请求的 ctx
const loadTimeout = 2 * time.Minute

// ModelLister 模型目录来源
type ModelLister interface {
	ListModels(ctx context.Context, apiKey string) ([]entity.OpenRouterModel, error)
}

// SortField 排序字段
type SortField string

const (
	SortByName    SortField = "name"
	SortByPrice   SortField = "price"
	SortByContext SortField = "context"
)

// Query 目录查询条件
type Query struct {
	Search     string
	Provider   string
	FreeOnly   bool
	MinContext int
	Sort       SortField
	Order      repository.SortOrder
	Page       int
	PageSize   int
}

// Service 模型目录服务
type Service struct {
	lister ModelLister
	cache  repository.Cache
	ttl    time.Duration
	group  singleflight.Group
}

// NewService cache 可为 nil（每次直连上游）
func NewService(lister ModelLister, cache repository.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{lister: lister, cache: cache, ttl: ttl}
}

// All 返回完整目录（读缓存，未命中时合并并发加载）
func (s *Service) All(ctx context.Context, apiKey string) ([]entity.OpenRouterModel, error) {
	if models, ok := s.fromCache(ctx); ok {
		metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
		return models, nil
	}
	metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()

	// 合并的加载不跟随任一调用方取消；每个调用方只在自己的 ctx 上等待
	ch := s.group.DoChan(cacheKey, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		if models, ok := s.fromCache(loadCtx); ok {
			return models, nil
		}
		models, err := s.lister.ListModels(loadCtx, apiKey)
		if err != nil {
			return nil, err
		}
		s.store(loadCtx, models)
		return models, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug(ctx, "catalog load shared")
		}
		return res.Val.([]entity.OpenRouterModel), nil
	}
}

// List 过滤、排序并分页
func (s *Service) List(ctx context.Context, apiKey string, q Query) (*repository.PagedResult[entity.OpenRouterModel], error) {
	models, err := s.All(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	filtered := Filter(models, q)
	SortModels(filtered, q.Sort, q.Order)
	return repository.Paginate(filtered, repository.NewPagination(q.Page, q.PageSize)), nil
}

// Get 按 ID 查找模型
func (s *Service) Get(ctx context.Context, apiKey, id string) (*entity.OpenRouterModel, error) {
	models, err := s.All(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].ID == id {
			m := models[i]
			return &m, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeModelNotFound, "model %q not found", id)
}

// Invalidate 清除目录缓存
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *Service) fromCache(ctx context.Context) ([]entity.OpenRouterModel, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			logger.Warn(ctx, "catalog cache read failed", "error", err.Error())
		}
		return nil, false
	}
	var models []entity.OpenRouterModel
	if err := json.Unmarshal(raw, &models); err != nil {
		logger.Warn(ctx, "catalog cache entry corrupt", "error", err.Error())
		return nil, false
	}
	return models, true
}

// store 缓存写入失败不影响返回结果
func (s *Service) store(ctx context.Context, models []entity.OpenRouterModel) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(models)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, s.ttl); err != nil {
		logger.Warn(ctx, "catalog cache write failed", "error", err.Error())
	}
}

// Filter 按条件筛选，返回新切片
func Filter(models []entity.OpenRouterModel, q Query) []entity.OpenRouterModel {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	provider := strings.ToLower(strings.TrimSpace(q.Provider))

	out := make([]entity.OpenRouterModel, 0, len(models))
	for _, m := range models {
		if provider != "" && strings.ToLower(m.Provider) != provider {
			continue
		}
		if q.FreeOnly && !m.Pricing.IsFree() {
			continue
		}
		if q.MinContext > 0 && m.ContextLength < q.MinContext {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(m.ID), search) &&
			!strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.Description), search) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SortModels 稳定排序，ID 作为次级键；按价格排序时浮动计价的模型无论升降序都排在末尾
func SortModels(models []entity.OpenRouterModel, field SortField, order repository.SortOrder) {
	cmpFn := func(a, b entity.OpenRouterModel) int {
		if field == SortByPrice && a.Pricing.Variable != b.Pricing.Variable {
			if a.Pricing.Variable {
				return 1
			}
			return -1
		}
		var c int
		switch field {
		case SortByPrice:
			c = cmp.Compare(a.Pricing.Blended(), b.Pricing.Blended())
		case SortByContext:
			c = cmp.Compare(a.ContextLength, b.ContextLength)
		default:
			c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		if order == repository.SortOrderDesc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	}
	slices.SortStableFunc(models, cmpFn)
}

// ParseSortField 未知字段回落到 name
func ParseSortField(s string) SortField {
	switch SortField(strings.ToLower(strings.TrimSpace(s))) {
	case SortByPrice:
		return SortByPrice
	case SortByContext:
		return SortByContext
	default:
		return SortByName
	}
}
