package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
)

// SpecDocumentRepository 规格归档仓储实现
type SpecDocumentRepository struct {
	client *Client
}

// NewSpecDocumentRepository 创建规格归档仓储
func NewSpecDocumentRepository(client *Client) *SpecDocumentRepository {
	return &SpecDocumentRepository{client: client}
}

// upsertClause 同一工作流重复完成时覆盖旧归档
func upsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "workflow_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"prompt", "model", "requirements", "design", "tasks", "context_files", "completed_at",
		}),
	}
}

// Save 按工作流 ID 写入或覆盖
func (r *SpecDocumentRepository) Save(ctx context.Context, doc *entity.SpecDocument) error {
	ctx, span := tracer.Start(ctx, "postgres.SpecDocumentRepository.Save",
		trace.WithAttributes(attribute.String("workflow.id", doc.WorkflowID)))
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(upsertClause()).Create(doc).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save spec document: %w", err)
	}
	return nil
}

func (r *SpecDocumentRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*entity.SpecDocument, error) {
	ctx, span := tracer.Start(ctx, "postgres.SpecDocumentRepository.GetByWorkflowID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.SpecDocument
	if err := db.First(&doc, "workflow_id = ?", workflowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get spec document: %w", err)
	}
	return &doc, nil
}

func (r *SpecDocumentRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.SpecDocument], error) {
	ctx, span := tracer.Start(ctx, "postgres.SpecDocumentRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db).Model(&entity.SpecDocument{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count spec documents: %w", err)
	}

	var docs []*entity.SpecDocument
	if err := db.Order("completed_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&docs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list spec documents: %w", err)
	}

	return repository.ResultOf(pagination, docs, total), nil
}
