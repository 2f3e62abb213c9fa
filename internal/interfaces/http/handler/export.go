package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/application/export"
	"openspec-api/internal/application/workflow"
	"openspec-api/internal/interfaces/http/dto"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/metrics"
)

// ExportHandler 导出处理器
type ExportHandler struct {
	workflows *workflow.Service
	now       func() time.Time
}

// NewExportHandler 创建导出处理器
func NewExportHandler(workflows *workflow.Service) *ExportHandler {
	return &ExportHandler{workflows: workflows, now: time.Now}
}

// ExportDocuments 打包请求体中的文档
// @Summary 导出 zip
// @Tags Export
// @Accept json
// @Produce application/zip
// @Param body body dto.ExportRequest true "文档"
// @Router /api/export [post]
func (h *ExportHandler) ExportDocuments(c *gin.Context) {
	var req dto.ExportRequest
	if err := bindJSON(c, &req); err != nil {
		dto.APIError(c, err)
		return
	}
	docs := req.ToDocuments()
	if docs.IsEmpty() {
		dto.APIError(c, apperrors.New(apperrors.CodeInvalidRequest, "nothing to export"))
		return
	}
	h.writeBundle(c, docs, "openspec", dto.APIError)
}

// ExportWorkflow 打包工作流文档
// @Router /v1/workflows/{id}/export [get]
func (h *ExportHandler) ExportWorkflow(c *gin.Context) {
	state, err := h.workflows.Get(c.Request.Context(), dto.BindWorkflowID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	docs := export.DocumentsFrom(state)
	if docs.IsEmpty() {
		dto.Fail(c, apperrors.New(apperrors.CodeConflict, "workflow has no generated documents"))
		return
	}
	h.writeBundle(c, docs, "openspec-"+shortID(state.ID), dto.Fail)
}

// ListDiagrams 列出工作流文档中的图
// @Router /v1/workflows/{id}/diagrams [get]
func (h *ExportHandler) ListDiagrams(c *gin.Context) {
	state, err := h.workflows.Get(c.Request.Context(), dto.BindWorkflowID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	diagrams := export.DocumentsFrom(state).Diagrams()
	if diagrams == nil {
		diagrams = []export.Diagram{}
	}
	dto.Success(c, dto.DiagramListResponse{Diagrams: diagrams})
}

// GetDiagram 返回单个图的 Mermaid 源码
// @Produce text/plain
// @Router /v1/workflows/{id}/diagrams/{index} [get]
func (h *ExportHandler) GetDiagram(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		dto.BadRequest(c, "diagram index must be a number")
		return
	}
	state, err := h.workflows.Get(c.Request.Context(), dto.BindWorkflowID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}

	diagrams := export.DocumentsFrom(state).Diagrams()
	src, ok := export.DiagramSource(diagrams, index)
	if !ok {
		dto.NotFound(c, fmt.Sprintf("diagram %d not found", index))
		return
	}

	metrics.ExportsTotal.WithLabelValues("diagram").Inc()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, diagrams[index-1].FileName()))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(src))
}

func (h *ExportHandler) writeBundle(c *gin.Context, docs export.Documents, name string, fail func(*gin.Context, error)) {
	var buf bytes.Buffer
	if err := export.Bundle(&buf, docs, h.now()); err != nil {
		fail(c, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to build export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, name))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
