package entity

import "time"

// 工作流事件类型
const (
	EventPhaseGenerated = "workflow.phase_generated"
	EventPhaseApproved  = "workflow.phase_approved"
	EventCompleted      = "workflow.completed"
)

// WorkflowEvent 工作流状态变化事件
type WorkflowEvent struct {
	Type       string    `json:"type"`
	WorkflowID string    `json:"workflow_id"`
	Phase      Phase     `json:"phase"`
	Model      string    `json:"model,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	// Data 事件附加信息（如 token 用量、内容长度）
	Data map[string]string `json:"data,omitempty"`
}
