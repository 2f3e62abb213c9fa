package dto

import "openspec-api/internal/application/export"

// ExportRequest /api/export 请求体
type ExportRequest struct {
	Title        string `json:"title,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	Model        string `json:"model,omitempty"`
	Requirements string `json:"requirements"`
	Design       string `json:"design"`
	Tasks        string `json:"tasks"`
}

// ToDocuments 转换为导出文档
func (r *ExportRequest) ToDocuments() export.Documents {
	return export.Documents{
		Title:        r.Title,
		Prompt:       r.Prompt,
		Model:        r.Model,
		Requirements: r.Requirements,
		Design:       r.Design,
		Tasks:        r.Tasks,
	}
}

// DiagramListResponse 图列表响应
type DiagramListResponse struct {
	Diagrams []export.Diagram `json:"diagrams"`
}
