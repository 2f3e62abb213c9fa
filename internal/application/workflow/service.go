// Package workflow 实现 requirements → design → tasks 三阶段规格工作流
package workflow

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"openspec-api/internal/application/contextfile"
	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
	"openspec-api/internal/domain/service"
	"openspec-api/internal/workflow/prompt"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
	"openspec-api/pkg/metrics"
)

// Generator 单次生成端口
type Generator interface {
	Generate(ctx context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error)
}

// CreateInput 创建工作流参数
type CreateInput struct {
	Prompt       string
	Model        string
	ContextFiles []entity.ContextFile
}

// GenerateInput 生成当前阶段参数；APIKey 只用于本次调用，不落盘
type GenerateInput struct {
	APIKey  string
	Options entity.GenerationOptions
}

// storeTimeout 生成结束后的收尾写入脱离请求 context，单独限时
const storeTimeout = 5 * time.Second

// Service 工作流服务
type Service struct {
	store     repository.WorkflowStore
	generator Generator
	prompts   *prompt.Registry
	files     *contextfile.Validator
	archive   repository.SpecDocumentRepository
	events    service.EventPublisher

	defaultModel string
	locks        *keyedMutex
	now          func() time.Time
}

// Option 可选依赖
type Option func(*Service)

// WithArchive 完成时归档到数据库
func WithArchive(repo repository.SpecDocumentRepository) Option {
	return func(s *Service) { s.archive = repo }
}

// WithEvents 发布工作流事件
func WithEvents(p service.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithDefaultModel 创建时未指定模型使用的默认模型
func WithDefaultModel(model string) Option {
	return func(s *Service) { s.defaultModel = model }
}

// NewService 创建工作流服务
func NewService(
	store repository.WorkflowStore,
	generator Generator,
	prompts *prompt.Registry,
	files *contextfile.Validator,
	opts ...Option,
) *Service {
	s := &Service{
		store:     store,
		generator: generator,
		prompts:   prompts,
		files:     files,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 创建新工作流
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.SpecWorkflowState, error) {
	p := strings.TrimSpace(in.Prompt)
	if p == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "prompt is required")
	}
	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = s.defaultModel
	}
	if model == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "model is required")
	}

	files := in.ContextFiles
	if s.files != nil {
		var err error
		if files, err = s.files.Validate(in.ContextFiles); err != nil {
			return nil, err
		}
	}

	state := entity.NewSpecWorkflowState(uuid.NewString(), p, model, files, s.now().UTC())
	ctx = logger.WithContext(ctx, logger.WorkflowIDKey, state.ID)
	if err := s.store.Save(ctx, state); err != nil {
		return nil, storeErr(err)
	}

	logger.Info(ctx, "workflow created",
		"model", model,
		"context_files", len(files),
	)
	return state, nil
}

// Get 读取工作流
func (s *Service) Get(ctx context.Context, id string) (*entity.SpecWorkflowState, error) {
	state, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return state, nil
}

// Delete 删除工作流
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx = logger.WithContext(ctx, logger.WorkflowIDKey, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return storeErr(err)
	}
	logger.Info(ctx, "workflow deleted")
	return nil
}

// Generate 生成当前阶段文档；生成过程不持有锁，isGenerating 与生成号作为跨请求的互斥标记
func (s *Service) Generate(ctx context.Context, id string, in GenerateInput) (*entity.SpecWorkflowState, error) {
	ctx = logger.WithContext(ctx, logger.WorkflowIDKey, id)

	var gen int64
	state, err := s.mutate(ctx, id, "begin_generation", func(st *entity.SpecWorkflowState) error {
		var err error
		gen, err = st.BeginGeneration(s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	phase := state.CurrentPhase

	req, err := s.buildRequest(state, phase, in)
	if err != nil {
		s.failGeneration(ctx, id, gen)
		return nil, err
	}

	genCtx := service.WithPhase(service.WithOperation(ctx, "workflow"), string(phase))
	result, genErr := s.generator.Generate(genCtx, req)
	if genErr != nil {
		s.failGeneration(ctx, id, gen)
		return nil, genErr
	}

	// 客户端断开后结果仍需落盘，否则生成标记会残留
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	var superseded bool
	state, err = s.mutate(storeCtx, id, "generate", func(st *entity.SpecWorkflowState) error {
		err := st.CompleteGeneration(gen, phase, result.Content, s.now().UTC())
		if errors.Is(err, entity.ErrGenerationSuperseded) {
			superseded = true
			return errSkipSave
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if superseded {
		logger.Info(ctx, "discarded superseded generation", "phase", phase, "generation", gen)
		return nil, apperrors.Newf(apperrors.CodeConflict, "workflow changed while %s was generating", phase)
	}

	metrics.WorkflowTransitions.WithLabelValues(string(phase), "generate").Inc()
	s.publish(ctx, state, entity.EventPhaseGenerated, map[string]string{
		"model":             result.Model,
		"content_length":    strconv.Itoa(len(result.Content)),
		"prompt_tokens":     strconv.Itoa(result.Usage.PromptTokens),
		"completion_tokens": strconv.Itoa(result.Usage.CompletionTokens),
	})
	return state, nil
}

// Approve 审批通过
func (s *Service) Approve(ctx context.Context, id string, phase entity.Phase) (*entity.SpecWorkflowState, error) {
	state, err := s.mutate(ctx, id, "approve", func(st *entity.SpecWorkflowState) error {
		return st.Approve(phase, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(string(phase), "approve").Inc()
	s.publish(ctx, state, entity.EventPhaseApproved, nil)
	return state, nil
}

// Reject 驳回
func (s *Service) Reject(ctx context.Context, id string, phase entity.Phase) (*entity.SpecWorkflowState, error) {
	state, err := s.mutate(ctx, id, "reject", func(st *entity.SpecWorkflowState) error {
		return st.Reject(phase, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(string(phase), "reject").Inc()
	return state, nil
}

// RequestRefinement 要求细化
func (s *Service) RequestRefinement(ctx context.Context, id string, phase entity.Phase, feedback string) (*entity.SpecWorkflowState, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "feedback is required")
	}
	state, err := s.mutate(ctx, id, "refine", func(st *entity.SpecWorkflowState) error {
		return st.RequestRefinement(phase, feedback, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(string(phase), "refine").Inc()
	return state, nil
}

// UpdateContent 手动编辑
func (s *Service) UpdateContent(ctx context.Context, id string, phase entity.Phase, content string) (*entity.SpecWorkflowState, error) {
	state, err := s.mutate(ctx, id, "edit", func(st *entity.SpecWorkflowState) error {
		return st.UpdateContent(phase, content, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(string(phase), "edit").Inc()
	return state, nil
}

// Advance 进入下一阶段；到达 complete 时归档并发布完成事件
func (s *Service) Advance(ctx context.Context, id string) (*entity.SpecWorkflowState, error) {
	ctx = logger.WithContext(ctx, logger.WorkflowIDKey, id)
	var from entity.Phase
	state, err := s.mutate(ctx, id, "advance", func(st *entity.SpecWorkflowState) error {
		from = st.CurrentPhase
		_, err := st.Advance(s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(string(from), "advance").Inc()

	if state.IsComplete() {
		metrics.WorkflowsCompleted.Inc()
		s.archiveCompleted(ctx, state)
		s.publish(ctx, state, entity.EventCompleted, nil)
		logger.Info(ctx, "workflow completed")
	}
	return state, nil
}

// Reset 回到需求阶段；同时作为生成标记残留时的恢复手段
func (s *Service) Reset(ctx context.Context, id string) (*entity.SpecWorkflowState, error) {
	state, err := s.mutate(ctx, id, "reset", func(st *entity.SpecWorkflowState) error {
		st.Reset(s.now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(string(entity.PhaseRequirements), "reset").Inc()
	return state, nil
}

// errSkipSave fn 返回它时 mutate 不写回，直接返回读到的状态
var errSkipSave = errors.New("skip save")

// mutate 在锁内读取、修改并保存工作流
func (s *Service) mutate(ctx context.Context, id, action string, fn func(*entity.SpecWorkflowState) error) (*entity.SpecWorkflowState, error) {
	ctx = logger.WithContext(ctx, logger.WorkflowIDKey, id)
	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := fn(state); err != nil {
		if errors.Is(err, errSkipSave) {
			return state, nil
		}
		logger.Debug(ctx, "workflow transition rejected",
			"action", action,
			"reason", err.Error(),
		)
		return nil, transitionErr(err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return nil, storeErr(err)
	}
	return state, nil
}

// failGeneration 清除本轮的生成标记；请求已取消时仍会执行，失败只记录日志，Reset 可作为兜底
func (s *Service) failGeneration(ctx context.Context, id string, gen int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	_, err := s.mutate(ctx, id, "fail_generation", func(st *entity.SpecWorkflowState) error {
		if !st.FailGeneration(gen, s.now().UTC()) {
			return errSkipSave
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "failed to clear generation flag", err, "generation", gen)
	}
}

func (s *Service) buildRequest(state *entity.SpecWorkflowState, phase entity.Phase, in GenerateInput) (*entity.GenerationRequest, error) {
	id, err := prompt.ForPhase(phase)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidTransition, err.Error())
	}

	approved := state.ApprovedContext(phase)
	vars := prompt.Vars{
		Prompt:       state.Prompt,
		Requirements: approved[entity.PhaseRequirements],
		Design:       approved[entity.PhaseDesign],
		ContextFiles: entity.ContextFileNames(state.ContextFiles),
	}
	if fb := state.Feedback.Get(phase); fb != "" {
		vars.Feedback = fb
		vars.Previous = state.Content.Get(phase)
	}

	rendered, err := s.prompts.Render(id, vars)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to render prompt")
	}

	return &entity.GenerationRequest{
		APIKey:       in.APIKey,
		Model:        state.Model,
		SystemPrompt: rendered.System,
		UserPrompt:   rendered.User,
		ContextFiles: state.ContextFiles,
		Options:      in.Options,
	}, nil
}

// archiveCompleted 归档失败不影响主流程
func (s *Service) archiveCompleted(ctx context.Context, state *entity.SpecWorkflowState) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, entity.NewSpecDocument(state)); err != nil {
		logger.Error(ctx, "failed to archive completed workflow", err)
	}
}

// publish 事件发布失败只记录日志
func (s *Service) publish(ctx context.Context, state *entity.SpecWorkflowState, eventType string, data map[string]string) {
	if s.events == nil {
		return
	}
	evt := &entity.WorkflowEvent{
		Type:       eventType,
		WorkflowID: state.ID,
		Phase:      state.CurrentPhase,
		Model:      state.Model,
		OccurredAt: s.now().UTC(),
		Data:       data,
	}
	if err := s.events.PublishWorkflowEvent(ctx, evt); err != nil {
		logger.Warn(logger.WithContext(ctx, logger.WorkflowIDKey, state.ID), "failed to publish workflow event",
			"type", eventType,
			"error", err.Error(),
		)
	}
}

func storeErr(err error) error {
	if errors.Is(err, repository.ErrWorkflowNotFound) {
		return apperrors.ErrWorkflowNotFound
	}
	return apperrors.Wrap(err, apperrors.CodeStorageError, "workflow storage failure")
}

func transitionErr(err error) error {
	var te *entity.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	if te.InProgress() {
		return apperrors.New(apperrors.CodeGenerationInFlight, te.Error())
	}
	return apperrors.New(apperrors.CodeInvalidTransition, te.Error())
}
