package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"openspec-api/internal/domain/entity"
)

// modelsResponse /models 响应体
type modelsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		Created       int64  `json:"created"`
		ContextLength int    `json:"context_length"`
		Pricing       *struct {
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
			Request    string `json:"request"`
			Image      string `json:"image"`
		} `json:"pricing"`
		SupportedParameters []string `json:"supported_parameters"`
	} `json:"data"`
}

// errorEnvelope OpenRouter 错误响应体
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ListModels 获取模型目录；/models 为公开接口，apiKey 可为空
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]entity.OpenRouterModel, error) {
	ctx, span := tracer.Start(ctx, "openrouter.ListModels")
	defer span.End()

	var models []entity.OpenRouterModel
	err := c.withRetry(ctx, "list_models", func(ctx context.Context) error {
		var err error
		models, err = c.fetchModels(ctx, apiKey)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return models, nil
}

func (c *Client) fetchModels(ctx context.Context, apiKey string) ([]entity.OpenRouterModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(apiKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var env errorEnvelope
		_ = json.Unmarshal(body, &env)
		return nil, ClassifyStatus(resp.StatusCode, env.Error.Message)
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]entity.OpenRouterModel, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		model := entity.OpenRouterModel{
			ID:                  m.ID,
			Name:                m.Name,
			Description:         m.Description,
			Provider:            entity.ProviderOf(m.ID),
			ContextLength:       m.ContextLength,
			SupportedParameters: m.SupportedParameters,
			Created:             m.Created,
		}
		if model.Name == "" {
			model.Name = m.ID
		}
		if m.Pricing != nil {
			prompt, promptVar := parsePrice(m.Pricing.Prompt)
			completion, completionVar := parsePrice(m.Pricing.Completion)
			request, _ := parsePrice(m.Pricing.Request)
			image, _ := parsePrice(m.Pricing.Image)
			model.Pricing = entity.ModelPricing{
				Prompt:     prompt,
				Completion: completion,
				Request:    request,
				Image:      image,
				Variable:   promptVar || completionVar,
			}
		}
		models = append(models, model)
	}
	return models, nil
}

// parsePrice 价格以十进制字符串下发；负数表示浮动计价，单价记 0 并返回 variable
func parsePrice(s string) (price float64, variable bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil:
		return 0, false
	case v < 0:
		return 0, true
	}
	return v, false
}
