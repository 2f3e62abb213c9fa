package service

import "context"

// LLMUsageInput 一次 LLM 调用的可观测数据
type LLMUsageInput struct {
	Operation string
	Phase     string
	Provider  string
	Model     string

	PromptTokens     int
	CompletionTokens int
	DurationMs       int64
	// Status success / 错误码
	Status string
}

// LLMUsageRecorder 记录 LLM 使用量；实现必须是 best-effort，不阻塞主流程
type LLMUsageRecorder interface {
	Record(ctx context.Context, in LLMUsageInput)
}
