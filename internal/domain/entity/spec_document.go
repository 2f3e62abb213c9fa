package entity

import (
	"time"

	"github.com/lib/pq"
)

// SpecDocument 已完成工作流的归档快照
type SpecDocument struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkflowID   string         `json:"workflow_id" gorm:"type:uuid;uniqueIndex;not null"`
	Prompt       string         `json:"prompt" gorm:"type:text;not null"`
	Model        string         `json:"model" gorm:"type:varchar(255);not null"`
	Requirements string         `json:"requirements" gorm:"type:text"`
	Design       string         `json:"design" gorm:"type:text"`
	Tasks        string         `json:"tasks" gorm:"type:text"`
	ContextFiles pq.StringArray `json:"context_files" gorm:"type:text[]"`
	CompletedAt  time.Time      `json:"completed_at" gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (SpecDocument) TableName() string {
	return "spec_documents"
}

// NewSpecDocument 从已完成的工作流生成归档
func NewSpecDocument(s *SpecWorkflowState) *SpecDocument {
	return &SpecDocument{
		WorkflowID:   s.ID,
		Prompt:       s.Prompt,
		Model:        s.Model,
		Requirements: s.Content.Requirements,
		Design:       s.Content.Design,
		Tasks:        s.Content.Tasks,
		ContextFiles: pq.StringArray(ContextFileNames(s.ContextFiles)),
		CompletedAt:  s.LastUpdated,
	}
}
