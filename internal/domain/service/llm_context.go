package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyOperation llmCtxKey = "llm_operation"
	llmCtxKeyPhase     llmCtxKey = "llm_phase"
)

// WithOperation 标记本次 LLM 调用所属的业务操作（generate / workflow）
func WithOperation(ctx context.Context, operation string) context.Context {
	if ctx == nil {
		return nil
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyOperation, op)
}

// WithPhase 标记工作流阶段
func WithPhase(ctx context.Context, phase string) context.Context {
	if ctx == nil {
		return nil
	}
	p := strings.TrimSpace(phase)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyPhase, p)
}

func OperationFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyOperation)
}

func PhaseFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyPhase)
}

func stringFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return "unknown"
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}
