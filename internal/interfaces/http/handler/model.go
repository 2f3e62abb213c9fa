package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/application/catalog"
	"openspec-api/internal/interfaces/http/dto"
	"openspec-api/pkg/logger"
)

// ModelHandler 模型目录处理器
type ModelHandler struct {
	catalog *catalog.Service
}

// NewModelHandler 创建模型目录处理器
func NewModelHandler(svc *catalog.Service) *ModelHandler {
	return &ModelHandler{catalog: svc}
}

// ListModels 模型列表（/api 格式）
// @Summary 模型列表
// @Tags Models
// @Produce json
// @Param search query string false "关键字"
// @Param provider query string false "提供商"
// @Param free_only query bool false "仅免费"
// @Param min_context query int false "最小上下文长度"
// @Param sort query string false "name/price/context"
// @Param order query string false "asc/desc"
// @Success 200 {object} dto.ModelListResponse
// @Router /api/models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	result, err := h.catalog.List(c.Request.Context(), dto.BearerToken(c), dto.BindModelQuery(c))
	if err != nil {
		dto.APIError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToModelListResponse(result))
}

// ListModelsV1 模型列表（v1 信封）
// @Router /v1/models [get]
func (h *ModelHandler) ListModelsV1(c *gin.Context) {
	q := dto.BindModelQuery(c)
	result, err := h.catalog.List(c.Request.Context(), dto.BearerToken(c), q)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.SuccessWithPage(c, result.Items, dto.PageMetaOf(result))
}

// GetModel 获取单个模型；模型 ID 含 "/"，使用通配参数
// @Router /v1/models/{id} [get]
func (h *ModelHandler) GetModel(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	model, err := h.catalog.Get(c.Request.Context(), dto.BearerToken(c), id)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, model)
}

// RefreshModels 清除目录缓存
// @Router /v1/models/refresh [post]
func (h *ModelHandler) RefreshModels(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.catalog.Invalidate(ctx); err != nil {
		logger.Warn(ctx, "failed to invalidate model catalog", "error", err.Error())
	}
	dto.NoContent(c)
}
