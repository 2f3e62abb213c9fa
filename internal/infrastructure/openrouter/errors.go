package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "openspec-api/pkg/errors"
)

// contextTooLongHints 上游 400 错误信息中表示上下文超长的片段
var contextTooLongHints = []string{
	"context length",
	"context_length",
	"context window",
	"maximum context",
	"too many tokens",
	"token limit",
	"too long",
}

// ClassifyStatus 按上游 HTTP 状态码与错误信息归类
func ClassifyStatus(status int, message string) *apperrors.AppError {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	lower := strings.ToLower(msg)

	switch {
	case status == http.StatusRequestEntityTooLarge:
		return apperrors.New(apperrors.CodeContextTooLong, msg)
	case status == http.StatusBadRequest:
		for _, hint := range contextTooLongHints {
			if strings.Contains(lower, hint) {
				return apperrors.New(apperrors.CodeContextTooLong, msg)
			}
		}
		return apperrors.New(apperrors.CodeInvalidRequest, msg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.New(apperrors.CodeInvalidAPIKey, msg)
	case status == http.StatusPaymentRequired:
		return apperrors.New(apperrors.CodeInsufficientCredits, msg)
	case status == http.StatusNotFound:
		return apperrors.New(apperrors.CodeModelNotFound, msg)
	case status == http.StatusTooManyRequests:
		return apperrors.New(apperrors.CodeRateLimited, msg)
	case status >= 500:
		return apperrors.New(apperrors.CodeNetworkError, msg)
	default:
		return apperrors.New(apperrors.CodeUnknown, msg)
	}
}

// classify 将 go-openai / 传输层错误转换为 AppError
func classify(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyStatus(apiErr.HTTPStatusCode, apiErr.Message).WithError(err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return ClassifyStatus(reqErr.HTTPStatusCode, msg).WithError(err)
	}

	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.CodeNetworkError, "request canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.CodeNetworkError, "upstream request timed out")
	}
	return apperrors.Wrap(err, apperrors.CodeNetworkError, fmt.Sprintf("failed to reach OpenRouter: %v", err))
}
