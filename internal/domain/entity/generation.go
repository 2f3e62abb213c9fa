package entity

import "time"

// Role 提示词消息角色；生成调用只发送系统与用户两条消息
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// GenerationOptions 生成参数
type GenerationOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
}

// GenerationRequest 一次生成调用
type GenerationRequest struct {
	APIKey       string
	Model        string
	SystemPrompt string
	UserPrompt   string
	ContextFiles []ContextFile
	Options      GenerationOptions
}

// TokenUsage token 用量
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// GenerationResult 生成结果
type GenerationResult struct {
	Content   string     `json:"content"`
	Model     string     `json:"model"`
	Timestamp time.Time  `json:"timestamp"`
	Usage     TokenUsage `json:"usage"`
}
