package openrouter

import (
	"context"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"openspec-api/internal/domain/entity"
	apperrors "openspec-api/pkg/errors"
)

// Message 对话消息；Images 为 data URL 或远程 URL
type Message struct {
	Role   entity.Role
	Text   string
	Images []string
}

// ChatRequest 对话补全请求
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// ChatResponse 对话补全响应
type ChatResponse struct {
	ID           string
	Content      string
	Model        string
	FinishReason string
	Usage        entity.TokenUsage
}

// ChatCompletion 调用 /chat/completions，可重试错误按配置线性重试
func (c *Client) ChatCompletion(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "openrouter.ChatCompletion",
		trace.WithAttributes(
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
		))
	defer span.End()

	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.ErrInvalidAPIKey
	}

	oc := c.chatClient(apiKey)
	body := toOpenAIRequest(req)

	var out *ChatResponse
	err := c.withRetry(ctx, "chat_completion", func(ctx context.Context) error {
		resp, err := oc.CreateChatCompletion(ctx, body)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return apperrors.New(apperrors.CodeNetworkError, "no completion returned by model")
		}
		choice := resp.Choices[0]
		model := resp.Model
		if model == "" {
			model = req.Model
		}
		out = &ChatResponse{
			ID:           resp.ID,
			Content:      choice.Message.Content,
			Model:        model,
			FinishReason: string(choice.FinishReason),
			Usage: entity.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("llm.total_tokens", out.Usage.TotalTokens))
	return out, nil
}

// chatClient 每个请求使用调用方的密钥构建 go-openai 客户端
func (c *Client) chatClient(apiKey string) *openai.Client {
	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = c.cfg.BaseURL
	oc.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(oc)
}

func toOpenAIRequest(req ChatRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	if req.Temperature != nil {
		out.Temperature = samplingParam(*req.Temperature)
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		out.TopP = samplingParam(*req.TopP)
	}

	for _, m := range req.Messages {
		if len(m.Images) == 0 {
			out.Messages = append(out.Messages, openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Text,
			})
			continue
		}

		parts := make([]openai.ChatMessagePart, 0, len(m.Images)+1)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Text,
		})
		for _, url := range m.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    url,
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		out.Messages = append(out.Messages, openai.ChatCompletionMessage{
			Role:         string(m.Role),
			MultiContent: parts,
		})
	}
	return out
}

// samplingParam go-openai 的浮点字段带 omitempty，显式的 0 需以最小正数发送才不会被丢弃
func samplingParam(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}
