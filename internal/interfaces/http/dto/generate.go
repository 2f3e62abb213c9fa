package dto

import (
	"time"

	"openspec-api/internal/domain/entity"
)

// GenerateOptions 生成参数
type GenerateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
}

// ToEntity 转换为领域参数
func (o *GenerateOptions) ToEntity() entity.GenerationOptions {
	if o == nil {
		return entity.GenerationOptions{}
	}
	return entity.GenerationOptions{
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
		TopP:        o.TopP,
	}
}

// GenerateRequest /api/generate 请求体
type GenerateRequest struct {
	APIKey       string           `json:"apiKey"`
	Model        string           `json:"model"`
	SystemPrompt string           `json:"systemPrompt,omitempty"`
	UserPrompt   string           `json:"userPrompt"`
	ContextFiles []ContextFile    `json:"contextFiles,omitempty"`
	Options      *GenerateOptions `json:"options,omitempty"`
}

// ToEntity 转换为生成请求；apiKey 为已解析的密钥
func (r *GenerateRequest) ToEntity(apiKey string) *entity.GenerationRequest {
	return &entity.GenerationRequest{
		APIKey:       apiKey,
		Model:        r.Model,
		SystemPrompt: r.SystemPrompt,
		UserPrompt:   r.UserPrompt,
		ContextFiles: ToContextFileEntities(r.ContextFiles),
		Options:      r.Options.ToEntity(),
	}
}

// GenerateResponse /api/generate 响应体
type GenerateResponse struct {
	Content   string            `json:"content"`
	Model     string            `json:"model"`
	Timestamp string            `json:"timestamp"`
	Usage     *entity.TokenUsage `json:"usage,omitempty"`
}

// ToGenerateResponse 转换生成结果
func ToGenerateResponse(r *entity.GenerationResult) *GenerateResponse {
	resp := &GenerateResponse{
		Content:   r.Content,
		Model:     r.Model,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if r.Usage.TotalTokens > 0 {
		usage := r.Usage
		resp.Usage = &usage
	}
	return resp
}
