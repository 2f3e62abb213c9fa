package repository

import (
	"context"

	"openspec-api/internal/domain/entity"
)

// SpecDocumentRepository 规格归档仓储
type SpecDocumentRepository interface {
	// Save 按工作流 ID 写入或覆盖归档
	Save(ctx context.Context, doc *entity.SpecDocument) error
	// GetByWorkflowID 不存在时返回 nil, nil
	GetByWorkflowID(ctx context.Context, workflowID string) (*entity.SpecDocument, error)
	// List 按完成时间倒序分页
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.SpecDocument], error)
}
