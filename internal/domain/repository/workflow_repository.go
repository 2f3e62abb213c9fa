package repository

import (
	"context"
	"errors"

	"openspec-api/internal/domain/entity"
)

// ErrWorkflowNotFound 工作流不存在
var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowStore 工作流状态存储
type WorkflowStore interface {
	// Get 读取工作流，不存在时返回 ErrWorkflowNotFound
	Get(ctx context.Context, id string) (*entity.SpecWorkflowState, error)
	// Save 写入工作流（整体覆盖）
	Save(ctx context.Context, state *entity.SpecWorkflowState) error
	// Delete 删除工作流，不存在时返回 ErrWorkflowNotFound
	Delete(ctx context.Context, id string) error
}
