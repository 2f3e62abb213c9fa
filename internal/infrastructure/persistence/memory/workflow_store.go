package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
)

// WorkflowStore 进程内工作流存储；保存序列化副本，调用方修改不会影响已存状态
type WorkflowStore struct {
	cache *cache.Cache
}

// NewWorkflowStore 创建工作流存储；ttl<=0 表示不过期
func NewWorkflowStore(ttl time.Duration) *WorkflowStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &WorkflowStore{cache: cache.New(ttl, 10*time.Minute)}
}

func (s *WorkflowStore) Get(_ context.Context, id string) (*entity.SpecWorkflowState, error) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, repository.ErrWorkflowNotFound
	}
	var state entity.SpecWorkflowState
	if err := json.Unmarshal(x.([]byte), &state); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}
	return &state, nil
}

func (s *WorkflowStore) Save(_ context.Context, state *entity.SpecWorkflowState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	s.cache.Set(state.ID, raw, cache.DefaultExpiration)
	return nil
}

func (s *WorkflowStore) Delete(_ context.Context, id string) error {
	if _, found := s.cache.Get(id); !found {
		return repository.ErrWorkflowNotFound
	}
	s.cache.Delete(id)
	return nil
}
