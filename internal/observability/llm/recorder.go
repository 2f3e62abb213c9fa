// Package llm 提供 LLM 调用的指标与追踪记录
package llm

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"openspec-api/internal/domain/service"
	"openspec-api/pkg/logger"
	"openspec-api/pkg/metrics"
)

// MetricsRecorder 将 LLM 使用量写入 Prometheus 与当前 span
type MetricsRecorder struct{}

// NewMetricsRecorder 创建记录器
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// Record 上报一次调用
func (r *MetricsRecorder) Record(ctx context.Context, in service.LLMUsageInput) {
	op := in.Operation
	if op == "" {
		op = "unknown"
	}
	status := in.Status
	if status == "" {
		status = "success"
	}

	metrics.LLMCallTotal.WithLabelValues(op, in.Model, status).Inc()
	if in.DurationMs > 0 {
		metrics.LLMCallDuration.WithLabelValues(op, in.Model).Observe(float64(in.DurationMs) / 1000)
	}
	if in.PromptTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(op, in.Model, "prompt").Add(float64(in.PromptTokens))
	}
	if in.CompletionTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(op, in.Model, "completion").Add(float64(in.CompletionTokens))
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("llm.operation", op),
			attribute.String("llm.provider", in.Provider),
			attribute.String("llm.model", in.Model),
			attribute.Int("llm.prompt_tokens", in.PromptTokens),
			attribute.Int("llm.completion_tokens", in.CompletionTokens),
			attribute.String("llm.status", status),
		)
	}

	logger.Debug(ctx, "llm call recorded",
		"operation", op,
		"phase", in.Phase,
		"provider", in.Provider,
		"model", in.Model,
		"prompt_tokens", in.PromptTokens,
		"completion_tokens", in.CompletionTokens,
		"duration_ms", in.DurationMs,
		"status", status,
	)
}
