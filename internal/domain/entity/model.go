package entity

import (
	"math"
	"strings"
)

// ModelPricing 模型价格（美元 / token）
type ModelPricing struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
	Request    float64 `json:"request"`
	Image      float64 `json:"image"`
	// Variable 上游以负数标记按路由目标计价（如 openrouter/auto），此时单价字段无意义
	Variable bool `json:"variable,omitempty"`
}

// IsFree 提示与补全均免费；浮动计价不算免费
func (p ModelPricing) IsFree() bool {
	return !p.Variable && p.Prompt == 0 && p.Completion == 0
}

// Blended 提示与补全平均单价，用于排序；浮动计价为 +Inf
func (p ModelPricing) Blended() float64 {
	if p.Variable {
		return math.Inf(1)
	}
	return (p.Prompt + p.Completion) / 2
}

// OpenRouterModel 模型目录条目
type OpenRouterModel struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Description         string       `json:"description,omitempty"`
	Provider            string       `json:"provider"`
	ContextLength       int          `json:"contextLength"`
	Pricing             ModelPricing `json:"pricing"`
	SupportedParameters []string     `json:"supportedParameters,omitempty"`
	Created             int64        `json:"created,omitempty"`
}

// ProviderOf 从模型 ID 前缀推导提供商，如 "anthropic/claude-3" -> "anthropic"
func ProviderOf(modelID string) string {
	if i := strings.Index(modelID, "/"); i > 0 {
		return modelID[:i]
	}
	return ""
}
