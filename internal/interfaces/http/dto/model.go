package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/application/catalog"
	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
)

// ModelListResponse 模型列表响应；/api/models 保持 {"models": [...]} 结构
type ModelListResponse struct {
	Models []entity.OpenRouterModel `json:"models"`
	Total  int64                    `json:"total"`
	Page   int                      `json:"page"`
	Size   int                      `json:"page_size"`
}

// BindModelQuery 从查询参数解析筛选条件
func BindModelQuery(c *gin.Context) catalog.Query {
	page := BindPage(c)
	minContext, _ := strconv.Atoi(c.Query("min_context"))
	freeOnly, _ := strconv.ParseBool(c.DefaultQuery("free_only", c.Query("freeOnly")))

	return catalog.Query{
		Search:     c.Query("search"),
		Provider:   c.Query("provider"),
		FreeOnly:   freeOnly,
		MinContext: minContext,
		Sort:       catalog.ParseSortField(c.Query("sort")),
		Order:      repository.ParseSortOrder(c.Query("order")),
		Page:       page.Page,
		PageSize:   page.PageSize,
	}
}

// ToModelListResponse 转换分页结果
func ToModelListResponse(r *repository.PagedResult[entity.OpenRouterModel]) *ModelListResponse {
	return &ModelListResponse{
		Models: r.Items,
		Total:  r.Total,
		Page:   r.Page,
		Size:   r.PageSize,
	}
}
