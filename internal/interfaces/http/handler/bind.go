// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "openspec-api/pkg/errors"
)

// bindJSON 解析 JSON 请求体，请求体超限映射为 PAYLOAD_TOO_LARGE
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return bindErr(err)
	}
	return nil
}

func bindErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.Newf(apperrors.CodePayloadTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
	}
	if errors.Is(err, io.EOF) {
		return apperrors.New(apperrors.CodeInvalidRequest, "request body is required")
	}
	return apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body: "+err.Error())
}
