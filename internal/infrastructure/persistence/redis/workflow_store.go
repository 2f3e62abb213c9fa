package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
)

// WorkflowStore 以 JSON 文档保存工作流状态，键沿用浏览器端存储键名
type WorkflowStore struct {
	client *Client
	ttl    time.Duration
}

// NewWorkflowStore 创建工作流存储；ttl<=0 表示不过期
func NewWorkflowStore(client *Client, ttl time.Duration) *WorkflowStore {
	return &WorkflowStore{client: client, ttl: ttl}
}

func workflowKey(id string) string {
	return entity.StorageKeyWorkflowState + ":" + id
}

// Get 读取工作流
func (s *WorkflowStore) Get(ctx context.Context, id string) (*entity.SpecWorkflowState, error) {
	ctx, span := tracer.Start(ctx, "redis.WorkflowStore.Get",
		trace.WithAttributes(attribute.String("workflow.id", id)))
	defer span.End()

	raw, err := s.client.rdb.Get(ctx, workflowKey(id)).Bytes()
	if err != nil {
		if IsNil(err) {
			return nil, repository.ErrWorkflowNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	var state entity.SpecWorkflowState
	if err := json.Unmarshal(raw, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}
	return &state, nil
}

// Save 整体覆盖写入，并刷新过期时间
func (s *WorkflowStore) Save(ctx context.Context, state *entity.SpecWorkflowState) error {
	ctx, span := tracer.Start(ctx, "redis.WorkflowStore.Save",
		trace.WithAttributes(attribute.String("workflow.id", state.ID)))
	defer span.End()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	if err := s.client.rdb.Set(ctx, workflowKey(state.ID), raw, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// Delete 删除工作流，不存在时返回 ErrWorkflowNotFound
func (s *WorkflowStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "redis.WorkflowStore.Delete",
		trace.WithAttributes(attribute.String("workflow.id", id)))
	defer span.End()

	n, err := s.client.rdb.Del(ctx, workflowKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if n == 0 {
		return repository.ErrWorkflowNotFound
	}
	return nil
}
