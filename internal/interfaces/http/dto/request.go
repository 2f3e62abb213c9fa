package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
)

// BindPage 读取 page / page_size，非法值回落到默认分页
func BindPage(c *gin.Context) repository.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	size, err := strconv.Atoi(c.Query("page_size"))
	if err != nil {
		size = repository.DefaultPageSize
	}
	return repository.NewPagination(page, size)
}

// BindPhase 解析 :phase，仅接受三个文档阶段
func BindPhase(c *gin.Context) (entity.Phase, error) {
	raw := c.Param("phase")
	p, err := entity.ParsePhase(raw)
	if err != nil || !p.IsDocument() {
		return "", apperrors.Newf(apperrors.CodeInvalidRequest, "invalid phase %q", raw)
	}
	return p, nil
}

// BearerToken Authorization: Bearer 头中的密钥，缺失时为空
func BearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// BindWorkflowID 读取 :id 并写入日志上下文
func BindWorkflowID(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	if id != "" {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.WorkflowIDKey, id))
	}
	return id
}
