// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/interfaces/http/dto"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
)

// Recovery 捕获 panic 并按路由前缀输出对应错误格式：/api 使用扁平错误体，其余使用信封
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			appErr := apperrors.New(apperrors.CodeInternalError, "internal server error")
			if c.Writer.Written() {
				c.Abort()
				return
			}
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.AbortWithStatusJSON(appErr.HTTPStatus, dto.NewAPIErrorResponse(appErr))
				return
			}
			c.AbortWithStatusJSON(appErr.HTTPStatus, dto.NewErrorResponse(c, appErr))
		}()

		c.Next()
	}
}
