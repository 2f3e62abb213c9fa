package workflow

import (
	"context"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
	apperrors "openspec-api/pkg/errors"
)

// ArchiveService 已完成规格的查询
type ArchiveService struct {
	repo repository.SpecDocumentRepository
}

// NewArchiveService repo 为 nil 时所有查询返回 SERVICE_UNAVAILABLE
func NewArchiveService(repo repository.SpecDocumentRepository) *ArchiveService {
	return &ArchiveService{repo: repo}
}

func (a *ArchiveService) List(ctx context.Context, page, pageSize int) (*repository.PagedResult[*entity.SpecDocument], error) {
	if a.repo == nil {
		return nil, apperrors.New(apperrors.CodeServiceUnavailable, "spec archive is not enabled")
	}
	res, err := a.repo.List(ctx, repository.NewPagination(page, pageSize))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to list archived specs")
	}
	return res, nil
}

func (a *ArchiveService) Get(ctx context.Context, workflowID string) (*entity.SpecDocument, error) {
	if a.repo == nil {
		return nil, apperrors.New(apperrors.CodeServiceUnavailable, "spec archive is not enabled")
	}
	doc, err := a.repo.GetByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to load archived spec")
	}
	if doc == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "archived spec not found")
	}
	return doc, nil
}
