package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/application/generation"
	"openspec-api/internal/interfaces/http/dto"
)

// GenerateHandler 无状态生成代理
type GenerateHandler struct {
	svc *generation.Service
}

// NewGenerateHandler 创建生成处理器
func NewGenerateHandler(svc *generation.Service) *GenerateHandler {
	return &GenerateHandler{svc: svc}
}

// Generate 代理一次对话补全
// @Summary 生成文档
// @Tags Generate
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.GenerateResponse
// @Failure 400 {object} dto.APIErrorResponse
// @Failure 429 {object} dto.APIErrorResponse
// @Router /api/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := bindJSON(c, &req); err != nil {
		dto.APIError(c, err)
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = dto.BearerToken(c)
	}

	result, err := h.svc.Generate(c.Request.Context(), req.ToEntity(apiKey))
	if err != nil {
		dto.APIError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToGenerateResponse(result))
}
