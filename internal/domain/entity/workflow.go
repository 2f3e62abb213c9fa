// Package entity 定义领域实体
package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Phase 工作流阶段
type Phase string

const (
	PhaseRequirements Phase = "requirements"
	PhaseDesign       Phase = "design"
	PhaseTasks        Phase = "tasks"
	PhaseComplete     Phase = "complete"
)

// DocumentPhases 产出文档的三个阶段，按顺序排列
var DocumentPhases = []Phase{PhaseRequirements, PhaseDesign, PhaseTasks}

// ParsePhase 解析阶段字符串
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PhaseRequirements, PhaseDesign, PhaseTasks, PhaseComplete:
		return p, nil
	default:
		return "", fmt.Errorf("unknown phase: %q", s)
	}
}

// IsDocument 是否为产出文档的阶段
func (p Phase) IsDocument() bool {
	return p == PhaseRequirements || p == PhaseDesign || p == PhaseTasks
}

// Next 返回下一阶段；complete 没有后继
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseRequirements:
		return PhaseDesign, true
	case PhaseDesign:
		return PhaseTasks, true
	case PhaseTasks:
		return PhaseComplete, true
	default:
		return "", false
	}
}

// Index 阶段序号，complete 为 3
func (p Phase) Index() int {
	switch p {
	case PhaseRequirements:
		return 0
	case PhaseDesign:
		return 1
	case PhaseTasks:
		return 2
	case PhaseComplete:
		return 3
	default:
		return -1
	}
}

// ApprovalStatus 阶段审批状态
type ApprovalStatus string

const (
	ApprovalPending         ApprovalStatus = "pending"
	ApprovalApproved        ApprovalStatus = "approved"
	ApprovalRejected        ApprovalStatus = "rejected"
	ApprovalNeedsRefinement ApprovalStatus = "needs_refinement"
)

// PhaseContent 各阶段文档内容
type PhaseContent struct {
	Requirements string `json:"requirements"`
	Design       string `json:"design"`
	Tasks        string `json:"tasks"`
}

// Get 获取指定阶段内容
func (c *PhaseContent) Get(p Phase) string {
	switch p {
	case PhaseRequirements:
		return c.Requirements
	case PhaseDesign:
		return c.Design
	case PhaseTasks:
		return c.Tasks
	default:
		return ""
	}
}

// Set 设置指定阶段内容
func (c *PhaseContent) Set(p Phase, content string) {
	switch p {
	case PhaseRequirements:
		c.Requirements = content
	case PhaseDesign:
		c.Design = content
	case PhaseTasks:
		c.Tasks = content
	}
}

// PhaseApprovals 各阶段审批状态
type PhaseApprovals struct {
	Requirements ApprovalStatus `json:"requirements"`
	Design       ApprovalStatus `json:"design"`
	Tasks        ApprovalStatus `json:"tasks"`
}

// Get 获取指定阶段审批状态
func (a *PhaseApprovals) Get(p Phase) ApprovalStatus {
	switch p {
	case PhaseRequirements:
		return a.Requirements
	case PhaseDesign:
		return a.Design
	case PhaseTasks:
		return a.Tasks
	default:
		return ""
	}
}

// Set 设置指定阶段审批状态
func (a *PhaseApprovals) Set(p Phase, status ApprovalStatus) {
	switch p {
	case PhaseRequirements:
		a.Requirements = status
	case PhaseDesign:
		a.Design = status
	case PhaseTasks:
		a.Tasks = status
	}
}

func pendingApprovals() PhaseApprovals {
	return PhaseApprovals{
		Requirements: ApprovalPending,
		Design:       ApprovalPending,
		Tasks:        ApprovalPending,
	}
}

// SpecWorkflowState 规格编写工作流状态
type SpecWorkflowState struct {
	ID           string         `json:"id"`
	CurrentPhase Phase          `json:"currentPhase"`
	Prompt       string         `json:"prompt"`
	Model        string         `json:"model"`
	Content      PhaseContent   `json:"content"`
	Approvals    PhaseApprovals `json:"approvals"`
	// Feedback 用户要求细化时留下的修改意见，下一次生成时带入提示词
	Feedback     PhaseContent  `json:"feedback"`
	ContextFiles []ContextFile `json:"contextFiles,omitempty"`
	IsGenerating bool          `json:"isGenerating"`
	// Generation 每次 BeginGeneration 递增，用于识别被重置或被新一轮生成取代的结果
	Generation  int64     `json:"generation"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NewSpecWorkflowState 创建处于需求阶段的新工作流
func NewSpecWorkflowState(id, prompt, model string, files []ContextFile, now time.Time) *SpecWorkflowState {
	return &SpecWorkflowState{
		ID:           id,
		CurrentPhase: PhaseRequirements,
		Prompt:       prompt,
		Model:        model,
		Approvals:    pendingApprovals(),
		ContextFiles: files,
		CreatedAt:    now,
		LastUpdated:  now,
	}
}

// TransitionError 非法状态迁移
type TransitionError struct {
	Action string
	Phase  Phase
	Reason string
}

// ReasonGenerating 当前阶段正在生成
const ReasonGenerating = "generation in progress"

// ErrGenerationSuperseded 生成结果所属的轮次已失效
var ErrGenerationSuperseded = errors.New("generation superseded")

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s: %s", e.Action, e.Phase, e.Reason)
}

// InProgress 是否因正在生成而被拒绝
func (e *TransitionError) InProgress() bool {
	return e.Reason == ReasonGenerating
}

func (s *SpecWorkflowState) touch(now time.Time) {
	s.LastUpdated = now
}

// requireCurrent 校验目标阶段为当前阶段
func (s *SpecWorkflowState) requireCurrent(action string, p Phase) error {
	if !p.IsDocument() {
		return &TransitionError{Action: action, Phase: p, Reason: "not a document phase"}
	}
	if s.CurrentPhase != p {
		return &TransitionError{Action: action, Phase: p, Reason: fmt.Sprintf("current phase is %s", s.CurrentPhase)}
	}
	return nil
}

// BeginGeneration 标记当前阶段开始生成，返回本轮生成号
func (s *SpecWorkflowState) BeginGeneration(now time.Time) (int64, error) {
	p := s.CurrentPhase
	if p == PhaseComplete {
		return 0, &TransitionError{Action: "generate", Phase: p, Reason: "workflow is complete"}
	}
	if s.IsGenerating {
		return 0, &TransitionError{Action: "generate", Phase: p, Reason: ReasonGenerating}
	}
	if s.Approvals.Get(p) == ApprovalApproved {
		return 0, &TransitionError{Action: "generate", Phase: p, Reason: "phase already approved"}
	}
	s.Generation++
	s.IsGenerating = true
	s.touch(now)
	return s.Generation, nil
}

// owns 生成号 gen 是否仍是进行中的那一轮
func (s *SpecWorkflowState) owns(gen int64) bool {
	return s.IsGenerating && s.Generation == gen
}

// CompleteGeneration 写入第 gen 轮的生成结果，审批重置为 pending；
// 该轮已被重置或取代时返回 ErrGenerationSuperseded 且不修改状态
func (s *SpecWorkflowState) CompleteGeneration(gen int64, p Phase, content string, now time.Time) error {
	if !s.owns(gen) || s.CurrentPhase != p {
		return ErrGenerationSuperseded
	}
	s.Content.Set(p, content)
	s.Approvals.Set(p, ApprovalPending)
	s.Feedback.Set(p, "")
	s.IsGenerating = false
	s.touch(now)
	return nil
}

// FailGeneration 第 gen 轮失败时清除生成中标记；已被取代的轮次不影响当前状态
func (s *SpecWorkflowState) FailGeneration(gen int64, now time.Time) bool {
	if !s.owns(gen) {
		return false
	}
	s.IsGenerating = false
	s.touch(now)
	return true
}

// Approve 审批通过当前阶段
func (s *SpecWorkflowState) Approve(p Phase, now time.Time) error {
	if err := s.requireCurrent("approve", p); err != nil {
		return err
	}
	if s.IsGenerating {
		return &TransitionError{Action: "approve", Phase: p, Reason: ReasonGenerating}
	}
	if strings.TrimSpace(s.Content.Get(p)) == "" {
		return &TransitionError{Action: "approve", Phase: p, Reason: "no content generated"}
	}
	s.Approvals.Set(p, ApprovalApproved)
	s.touch(now)
	return nil
}

// Reject 驳回当前阶段
func (s *SpecWorkflowState) Reject(p Phase, now time.Time) error {
	if err := s.requireCurrent("reject", p); err != nil {
		return err
	}
	if s.IsGenerating {
		return &TransitionError{Action: "reject", Phase: p, Reason: ReasonGenerating}
	}
	s.Approvals.Set(p, ApprovalRejected)
	s.touch(now)
	return nil
}

// RequestRefinement 要求细化当前阶段，记录修改意见
func (s *SpecWorkflowState) RequestRefinement(p Phase, feedback string, now time.Time) error {
	if err := s.requireCurrent("refine", p); err != nil {
		return err
	}
	if s.IsGenerating {
		return &TransitionError{Action: "refine", Phase: p, Reason: ReasonGenerating}
	}
	if strings.TrimSpace(s.Content.Get(p)) == "" {
		return &TransitionError{Action: "refine", Phase: p, Reason: "no content generated"}
	}
	s.Approvals.Set(p, ApprovalNeedsRefinement)
	s.Feedback.Set(p, strings.TrimSpace(feedback))
	s.touch(now)
	return nil
}

// UpdateContent 手动编辑当前阶段内容，审批重置为 pending
func (s *SpecWorkflowState) UpdateContent(p Phase, content string, now time.Time) error {
	if err := s.requireCurrent("edit", p); err != nil {
		return err
	}
	if s.IsGenerating {
		return &TransitionError{Action: "edit", Phase: p, Reason: ReasonGenerating}
	}
	s.Content.Set(p, content)
	s.Approvals.Set(p, ApprovalPending)
	s.touch(now)
	return nil
}

// Advance 进入下一阶段，要求当前阶段已审批通过
func (s *SpecWorkflowState) Advance(now time.Time) (Phase, error) {
	p := s.CurrentPhase
	next, ok := p.Next()
	if !ok {
		return p, &TransitionError{Action: "advance", Phase: p, Reason: "workflow is complete"}
	}
	if s.IsGenerating {
		return p, &TransitionError{Action: "advance", Phase: p, Reason: ReasonGenerating}
	}
	if s.Approvals.Get(p) != ApprovalApproved {
		return p, &TransitionError{Action: "advance", Phase: p, Reason: "phase is not approved"}
	}
	s.CurrentPhase = next
	s.touch(now)
	return next, nil
}

// Reset 回到需求阶段，保留原始需求描述
func (s *SpecWorkflowState) Reset(now time.Time) {
	s.CurrentPhase = PhaseRequirements
	s.Content = PhaseContent{}
	s.Feedback = PhaseContent{}
	s.Approvals = pendingApprovals()
	s.IsGenerating = false
	s.touch(now)
}

// IsComplete 是否已完成全部阶段
func (s *SpecWorkflowState) IsComplete() bool {
	return s.CurrentPhase == PhaseComplete
}

// ApprovedContext 返回 before 之前且已审批的阶段内容，用于后续阶段提示词
func (s *SpecWorkflowState) ApprovedContext(before Phase) map[Phase]string {
	out := make(map[Phase]string)
	for _, p := range DocumentPhases {
		if p.Index() >= before.Index() {
			break
		}
		if s.Approvals.Get(p) == ApprovalApproved {
			out[p] = s.Content.Get(p)
		}
	}
	return out
}
