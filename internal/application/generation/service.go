// Package generation 实现单次生成代理：校验、组装消息、调用 OpenRouter
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"openspec-api/internal/application/contextfile"
	"openspec-api/internal/config"
	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/service"
	"openspec-api/internal/infrastructure/openrouter"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
)

// ChatClient 对话补全端口
type ChatClient interface {
	ChatCompletion(ctx context.Context, apiKey string, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// Service 生成服务
type Service struct {
	cfg           config.GenerationConfig
	defaultAPIKey string
	client        ChatClient
	files         *contextfile.Validator
	recorder      service.LLMUsageRecorder
	now           func() time.Time
}

// NewService 创建生成服务；recorder 可为 nil
func NewService(
	cfg config.GenerationConfig,
	defaultAPIKey string,
	client ChatClient,
	files *contextfile.Validator,
	recorder service.LLMUsageRecorder,
) *Service {
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 100000
	}
	if cfg.MaxTokensCap <= 0 {
		cfg.MaxTokensCap = 32000
	}
	return &Service{
		cfg:           cfg,
		defaultAPIKey: defaultAPIKey,
		client:        client,
		files:         files,
		recorder:      recorder,
		now:           time.Now,
	}
}

// ResolveAPIKey 请求未携带密钥时回落到服务端默认密钥
func (s *Service) ResolveAPIKey(apiKey string) string {
	if k := strings.TrimSpace(apiKey); k != "" {
		return k
	}
	return s.defaultAPIKey
}

// Generate 校验请求并调用上游
func (s *Service) Generate(ctx context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error) {
	apiKey := s.ResolveAPIKey(req.APIKey)
	if apiKey == "" {
		return nil, apperrors.ErrInvalidAPIKey
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.cfg.DefaultModel
	}
	if model == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "model is required")
	}

	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "userPrompt is required")
	}
	if n := utf8.RuneCountInString(req.UserPrompt) + utf8.RuneCountInString(req.SystemPrompt); n > s.cfg.MaxPromptChars {
		return nil, apperrors.Newf(apperrors.CodeContextTooLong,
			"prompt is %d characters (max %d)", n, s.cfg.MaxPromptChars)
	}

	files := req.ContextFiles
	if s.files != nil {
		var err error
		if files, err = s.files.Validate(req.ContextFiles); err != nil {
			return nil, err
		}
	}

	chatReq, err := s.buildChatRequest(model, req.SystemPrompt, req.UserPrompt, files, req.Options)
	if err != nil {
		return nil, err
	}

	if service.OperationFromContext(ctx) == "unknown" {
		ctx = service.WithOperation(ctx, "generate")
	}
	start := s.now()
	resp, err := s.client.ChatCompletion(ctx, apiKey, *chatReq)
	elapsed := s.now().Sub(start)

	usage := service.LLMUsageInput{
		Operation:  service.OperationFromContext(ctx),
		Phase:      service.PhaseFromContext(ctx),
		Provider:   entity.ProviderOf(model),
		Model:      model,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		appErr := apperrors.AsAppError(err)
		usage.Status = string(appErr.Code)
		s.record(ctx, usage)
		logger.Warn(ctx, "generation failed",
			"model", model,
			"code", appErr.Code,
			"retryable", appErr.Retryable,
			"duration_ms", elapsed.Milliseconds(),
		)
		return nil, appErr
	}

	usage.PromptTokens = resp.Usage.PromptTokens
	usage.CompletionTokens = resp.Usage.CompletionTokens
	usage.Status = "success"
	s.record(ctx, usage)

	logger.Info(ctx, "generation completed",
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"finish_reason", resp.FinishReason,
		"duration_ms", elapsed.Milliseconds(),
	)

	return &entity.GenerationResult{
		Content:   resp.Content,
		Model:     resp.Model,
		Timestamp: s.now().UTC(),
		Usage:     resp.Usage,
	}, nil
}

func (s *Service) record(ctx context.Context, in service.LLMUsageInput) {
	if s.recorder != nil {
		s.recorder.Record(ctx, in)
	}
}

// buildChatRequest 校验生成参数并组装消息
func (s *Service) buildChatRequest(model, system, prompt string, files []entity.ContextFile, opts entity.GenerationOptions) (*openrouter.ChatRequest, error) {
	req := &openrouter.ChatRequest{Model: model}

	if t := opts.Temperature; t != nil {
		if *t < 0 || *t > 2 {
			return nil, apperrors.New(apperrors.CodeInvalidRequest, "temperature must be between 0 and 2")
		}
		req.Temperature = t
	} else if s.cfg.DefaultTemperature > 0 {
		t := s.cfg.DefaultTemperature
		req.Temperature = &t
	}

	if m := opts.MaxTokens; m != nil {
		if *m < 1 || *m > s.cfg.MaxTokensCap {
			return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "maxTokens must be between 1 and %d", s.cfg.MaxTokensCap)
		}
		req.MaxTokens = m
	} else if s.cfg.DefaultMaxTokens > 0 {
		m := s.cfg.DefaultMaxTokens
		req.MaxTokens = &m
	}

	if p := opts.TopP; p != nil {
		if *p < 0 || *p > 1 {
			return nil, apperrors.New(apperrors.CodeInvalidRequest, "topP must be between 0 and 1")
		}
		req.TopP = p
	}

	if strings.TrimSpace(system) != "" {
		req.Messages = append(req.Messages, openrouter.Message{Role: entity.RoleSystem, Text: system})
	}
	req.Messages = append(req.Messages, BuildUserMessage(prompt, files))
	return req, nil
}

// BuildUserMessage 文本文件内联到提示词末尾，图片作为 data URL 附带
func BuildUserMessage(prompt string, files []entity.ContextFile) openrouter.Message {
	msg := openrouter.Message{Role: entity.RoleUser}

	var b strings.Builder
	b.WriteString(prompt)

	wroteHeader := false
	for i := range files {
		f := &files[i]
		if f.IsImage() {
			msg.Images = append(msg.Images, f.DataURL())
			continue
		}
		if !wroteHeader {
			b.WriteString("\n\n## Context Files\n")
			wroteHeader = true
		}
		fmt.Fprintf(&b, "\n### %s\n\n```\n%s\n```\n", f.Name, strings.TrimRight(f.Content, "\n"))
	}

	msg.Text = b.String()
	return msg
}
