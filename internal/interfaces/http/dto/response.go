// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/domain/repository"
	apperrors "openspec-api/pkg/errors"
)

// Response /v1 路由的统一信封
type Response[T any] struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    T         `json:"data,omitempty"`
	Meta    *PageMeta `json:"meta,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// PageMeta 分页元数据
type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ErrorDetail 信封内的错误详情
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// ErrorResponse /v1 路由的错误信封
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// APIErrorBody /api 路由的错误体
type APIErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// APIErrorResponse /api 路由的错误响应 {"error": {...}}
type APIErrorResponse struct {
	Error APIErrorBody `json:"error"`
}

func envelope[T any](c *gin.Context, status int, message string, data T, meta *PageMeta) {
	c.JSON(status, Response[T]{
		Code:    status,
		Message: message,
		Data:    data,
		Meta:    meta,
		TraceID: c.GetString("trace_id"),
	})
}

// Success 200
func Success[T any](c *gin.Context, data T) {
	envelope(c, http.StatusOK, "success", data, nil)
}

// SuccessWithPage 200，附分页元数据
func SuccessWithPage[T any](c *gin.Context, data T, meta *PageMeta) {
	envelope(c, http.StatusOK, "success", data, meta)
}

// Created 201
func Created[T any](c *gin.Context, data T) {
	envelope(c, http.StatusCreated, "created", data, nil)
}

// NoContent 204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// NewErrorResponse 由 AppError 构造错误信封
func NewErrorResponse(c *gin.Context, appErr *apperrors.AppError) ErrorResponse {
	return ErrorResponse{
		Code:    appErr.HTTPStatus,
		Message: appErr.Message,
		Error: &ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
			Retryable: appErr.Retryable,
		},
		TraceID: c.GetString("trace_id"),
	}
}

// Fail 以 /v1 信封输出错误；非 AppError 视为内部错误
func Fail(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus, NewErrorResponse(c, appErr))
}

// APIError 以 /api 路由的错误格式输出
func APIError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus, NewAPIErrorResponse(appErr))
}

// NewAPIErrorResponse 由 AppError 构造 /api 错误体
func NewAPIErrorResponse(appErr *apperrors.AppError) APIErrorResponse {
	return APIErrorResponse{Error: APIErrorBody{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Retryable: appErr.Retryable,
	}}
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Fail(c, apperrors.New(apperrors.CodeInvalidRequest, message))
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	Fail(c, apperrors.New(apperrors.CodeNotFound, message))
}

// PageMetaOf 由分页结果生成元数据
func PageMetaOf[T any](r *repository.PagedResult[T]) *PageMeta {
	return &PageMeta{
		Page:       r.Page,
		PageSize:   r.PageSize,
		Total:      int(r.Total),
		TotalPages: r.TotalPages,
	}
}
