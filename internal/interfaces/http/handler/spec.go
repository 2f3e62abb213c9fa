package handler

import (
	"github.com/gin-gonic/gin"

	"openspec-api/internal/application/workflow"
	"openspec-api/internal/interfaces/http/dto"
)

// SpecHandler 已归档规格处理器
type SpecHandler struct {
	archive *workflow.ArchiveService
}

// NewSpecHandler 创建归档处理器
func NewSpecHandler(archive *workflow.ArchiveService) *SpecHandler {
	return &SpecHandler{archive: archive}
}

// ListSpecs 分页列出已完成的规格
// @Router /v1/specs [get]
func (h *SpecHandler) ListSpecs(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.archive.List(c.Request.Context(), page.Page, page.PageSize)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToSpecDocumentListResponse(result.Items),
		dto.PageMetaOf(result))
}

// GetSpec 按工作流 ID 获取归档
// @Router /v1/specs/{workflowId} [get]
func (h *SpecHandler) GetSpec(c *gin.Context) {
	doc, err := h.archive.Get(c.Request.Context(), c.Param("workflowId"))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToSpecDocumentResponse(doc))
}
