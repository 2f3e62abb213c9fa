package service

import (
	"context"

	"openspec-api/internal/domain/entity"
)

// EventPublisher 工作流事件发布端口
type EventPublisher interface {
	PublishWorkflowEvent(ctx context.Context, event *entity.WorkflowEvent) error
}
