package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/application/workflow"
	"openspec-api/internal/domain/entity"
	"openspec-api/internal/interfaces/http/dto"
)

// WorkflowHandler 规格工作流处理器
type WorkflowHandler struct {
	svc *workflow.Service
}

// NewWorkflowHandler 创建工作流处理器
func NewWorkflowHandler(svc *workflow.Service) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// CreateWorkflow 创建工作流
// @Summary 创建工作流
// @Tags Workflows
// @Accept json
// @Produce json
// @Param body body dto.CreateWorkflowRequest true "需求描述"
// @Success 201 {object} dto.Response[dto.WorkflowResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/workflows [post]
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req dto.CreateWorkflowRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Fail(c, err)
		return
	}

	state, err := h.svc.Create(c.Request.Context(), workflow.CreateInput{
		Prompt:       req.Prompt,
		Model:        req.Model,
		ContextFiles: dto.ToContextFileEntities(req.ContextFiles),
	})
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, dto.ToWorkflowResponse(state))
}

// GetWorkflow 获取工作流
// @Router /v1/workflows/{id} [get]
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	state, err := h.svc.Get(c.Request.Context(), dto.BindWorkflowID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToWorkflowResponse(state))
}

// DeleteWorkflow 删除工作流
// @Router /v1/workflows/{id} [delete]
func (h *WorkflowHandler) DeleteWorkflow(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), dto.BindWorkflowID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// Generate 生成当前阶段
// @Summary 生成当前阶段文档
// @Tags Workflows
// @Param body body dto.GenerateWorkflowRequest false "密钥与参数"
// @Success 200 {object} dto.Response[dto.WorkflowResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/workflows/{id}/generate [post]
func (h *WorkflowHandler) Generate(c *gin.Context) {
	var req dto.GenerateWorkflowRequest
	// 请求体可省略，密钥放在 Authorization 头
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		dto.Fail(c, bindErr(err))
		return
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = dto.BearerToken(c)
	}

	state, err := h.svc.Generate(c.Request.Context(), dto.BindWorkflowID(c), workflow.GenerateInput{
		APIKey:  apiKey,
		Options: req.Options.ToEntity(),
	})
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToWorkflowResponse(state))
}

// Approve 审批通过
// @Router /v1/workflows/{id}/phases/{phase}/approve [post]
func (h *WorkflowHandler) Approve(c *gin.Context) {
	h.phaseAction(c, func(id string, p entity.Phase) (*entity.SpecWorkflowState, error) {
		return h.svc.Approve(c.Request.Context(), id, p)
	})
}

// Reject 驳回
// @Router /v1/workflows/{id}/phases/{phase}/reject [post]
func (h *WorkflowHandler) Reject(c *gin.Context) {
	h.phaseAction(c, func(id string, p entity.Phase) (*entity.SpecWorkflowState, error) {
		return h.svc.Reject(c.Request.Context(), id, p)
	})
}

// Refine 要求细化
// @Router /v1/workflows/{id}/phases/{phase}/refine [post]
func (h *WorkflowHandler) Refine(c *gin.Context) {
	var req dto.RefineRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Fail(c, err)
		return
	}
	h.phaseAction(c, func(id string, p entity.Phase) (*entity.SpecWorkflowState, error) {
		return h.svc.RequestRefinement(c.Request.Context(), id, p, req.Feedback)
	})
}

// UpdateContent 手动编辑
// @Router /v1/workflows/{id}/phases/{phase}/content [put]
func (h *WorkflowHandler) UpdateContent(c *gin.Context) {
	var req dto.UpdateContentRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Fail(c, err)
		return
	}
	h.phaseAction(c, func(id string, p entity.Phase) (*entity.SpecWorkflowState, error) {
		return h.svc.UpdateContent(c.Request.Context(), id, p, req.Content)
	})
}

// Advance 进入下一阶段
// @Router /v1/workflows/{id}/advance [post]
func (h *WorkflowHandler) Advance(c *gin.Context) {
	state, err := h.svc.Advance(c.Request.Context(), dto.BindWorkflowID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToWorkflowResponse(state))
}

// Reset 重置到需求阶段
// @Router /v1/workflows/{id}/reset [post]
func (h *WorkflowHandler) Reset(c *gin.Context) {
	state, err := h.svc.Reset(c.Request.Context(), dto.BindWorkflowID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToWorkflowResponse(state))
}

func (h *WorkflowHandler) phaseAction(c *gin.Context, fn func(id string, p entity.Phase) (*entity.SpecWorkflowState, error)) {
	phase, err := dto.BindPhase(c)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	state, err := fn(dto.BindWorkflowID(c), phase)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToWorkflowResponse(state))
}
