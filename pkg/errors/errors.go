// Package errors 提供统一的错误定义
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 上游 / 生成错误（与前端约定的字符串常量）
	CodeInvalidAPIKey       ErrorCode = "INVALID_API_KEY"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeModelNotFound       ErrorCode = "MODEL_NOT_FOUND"
	CodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"
	CodeContextTooLong      ErrorCode = "CONTEXT_TOO_LONG"
	CodeNetworkError        ErrorCode = "NETWORK_ERROR"

	// 通用错误
	CodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	CodePayloadTooLarge    ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeUnknown            ErrorCode = "UNKNOWN_ERROR"

	// 工作流错误
	CodeWorkflowNotFound   ErrorCode = "WORKFLOW_NOT_FOUND"
	CodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	CodeGenerationInFlight ErrorCode = "GENERATION_IN_PROGRESS"

	// 存储错误
	CodeStorageError ErrorCode = "STORAGE_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	Retryable  bool      `json:"retryable"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage 替换错误信息
func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Retryable:  codeRetryable(code),
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf 使用格式化信息创建应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Retryable:  codeRetryable(code),
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeInvalidAPIKey:
		return http.StatusUnauthorized
	case CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case CodeModelNotFound, CodeNotFound, CodeWorkflowNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition, CodeGenerationInFlight:
		return http.StatusConflict
	case CodeContextTooLong, CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNetworkError:
		return http.StatusBadGateway
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// codeRetryable 错误码是否允许客户端重试
func codeRetryable(code ErrorCode) bool {
	switch code {
	case CodeRateLimited, CodeNetworkError, CodeServiceUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatusOf 返回错误码对应的 HTTP 状态码
func HTTPStatusOf(code ErrorCode) int {
	return codeToHTTPStatus(code)
}

// 预定义错误
var (
	ErrInvalidRequest     = New(CodeInvalidRequest, "invalid request")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrRateLimited        = New(CodeRateLimited, "rate limit exceeded")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrInvalidAPIKey = New(CodeInvalidAPIKey, "invalid or missing API key")

	ErrWorkflowNotFound   = New(CodeWorkflowNotFound, "workflow not found")
	ErrInvalidTransition  = New(CodeInvalidTransition, "invalid workflow transition")
	ErrGenerationInFlight = New(CodeGenerationInFlight, "generation already in progress")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// HasCode 判断错误链中是否包含指定错误码
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
