package dto

import (
	"time"

	"openspec-api/internal/domain/entity"
)

// CreateWorkflowRequest 创建工作流请求
type CreateWorkflowRequest struct {
	Prompt       string        `json:"prompt" binding:"required"`
	Model        string        `json:"model,omitempty"`
	ContextFiles []ContextFile `json:"contextFiles,omitempty"`
}

// GenerateWorkflowRequest 生成当前阶段请求；apiKey 也可放在 Authorization 头
type GenerateWorkflowRequest struct {
	APIKey  string           `json:"apiKey,omitempty"`
	Options *GenerateOptions `json:"options,omitempty"`
}

// RefineRequest 细化请求
type RefineRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// UpdateContentRequest 手动编辑请求
type UpdateContentRequest struct {
	Content string `json:"content"`
}

// WorkflowResponse 工作流响应
type WorkflowResponse struct {
	ID           string                `json:"id"`
	CurrentPhase entity.Phase          `json:"currentPhase"`
	Prompt       string                `json:"prompt"`
	Model        string                `json:"model"`
	Content      entity.PhaseContent   `json:"content"`
	Approvals    entity.PhaseApprovals `json:"approvals"`
	Feedback     entity.PhaseContent   `json:"feedback"`
	ContextFiles []ContextFileSummary  `json:"contextFiles"`
	IsGenerating bool                  `json:"isGenerating"`
	IsComplete   bool                  `json:"isComplete"`
	CreatedAt    string                `json:"createdAt"`
	LastUpdated  string                `json:"lastUpdated"`
}

// ToWorkflowResponse 转换工作流状态；上下文文件只返回摘要
func ToWorkflowResponse(s *entity.SpecWorkflowState) *WorkflowResponse {
	return &WorkflowResponse{
		ID:           s.ID,
		CurrentPhase: s.CurrentPhase,
		Prompt:       s.Prompt,
		Model:        s.Model,
		Content:      s.Content,
		Approvals:    s.Approvals,
		Feedback:     s.Feedback,
		ContextFiles: ToContextFileSummaries(s.ContextFiles),
		IsGenerating: s.IsGenerating,
		IsComplete:   s.IsComplete(),
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
		LastUpdated:  s.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// SpecDocumentResponse 归档文档响应
type SpecDocumentResponse struct {
	ID           string   `json:"id"`
	WorkflowID   string   `json:"workflow_id"`
	Prompt       string   `json:"prompt"`
	Model        string   `json:"model"`
	Requirements string   `json:"requirements"`
	Design       string   `json:"design"`
	Tasks        string   `json:"tasks"`
	ContextFiles []string `json:"context_files"`
	CompletedAt  string   `json:"completed_at"`
}

// ToSpecDocumentResponse 转换归档文档
func ToSpecDocumentResponse(d *entity.SpecDocument) *SpecDocumentResponse {
	files := []string(d.ContextFiles)
	if files == nil {
		files = []string{}
	}
	return &SpecDocumentResponse{
		ID:           d.ID,
		WorkflowID:   d.WorkflowID,
		Prompt:       d.Prompt,
		Model:        d.Model,
		Requirements: d.Requirements,
		Design:       d.Design,
		Tasks:        d.Tasks,
		ContextFiles: files,
		CompletedAt:  d.CompletedAt.UTC().Format(time.RFC3339),
	}
}

// SpecDocumentListResponse 归档列表响应
type SpecDocumentListResponse struct {
	Specs []*SpecDocumentResponse `json:"specs"`
}

// ToSpecDocumentListResponse 转换归档列表
func ToSpecDocumentListResponse(docs []*entity.SpecDocument) *SpecDocumentListResponse {
	out := make([]*SpecDocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, ToSpecDocumentResponse(d))
	}
	return &SpecDocumentListResponse{Specs: out}
}
