package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newState() *SpecWorkflowState {
	return NewSpecWorkflowState("wf-1", "a todo app", "openai/gpt-4o", nil, t0)
}

func generate(t *testing.T, s *SpecWorkflowState, content string) {
	t.Helper()
	gen, err := s.BeginGeneration(t0)
	require.NoError(t, err)
	require.NoError(t, s.CompleteGeneration(gen, s.CurrentPhase, content, t0))
}

func TestPhaseOrder(t *testing.T) {
	next, ok := PhaseRequirements.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseDesign, next)

	next, _ = PhaseDesign.Next()
	assert.Equal(t, PhaseTasks, next)

	next, _ = PhaseTasks.Next()
	assert.Equal(t, PhaseComplete, next)

	_, ok = PhaseComplete.Next()
	assert.False(t, ok)
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase(" Design ")
	require.NoError(t, err)
	assert.Equal(t, PhaseDesign, p)

	_, err = ParsePhase("deploy")
	assert.Error(t, err)
}

func TestNewStateStartsPending(t *testing.T) {
	s := newState()
	assert.Equal(t, PhaseRequirements, s.CurrentPhase)
	for _, p := range DocumentPhases {
		assert.Equal(t, ApprovalPending, s.Approvals.Get(p))
	}
	assert.False(t, s.IsGenerating)
}

func TestFullHappyPath(t *testing.T) {
	s := newState()
	for _, p := range DocumentPhases {
		assert.Equal(t, p, s.CurrentPhase)
		generate(t, s, "# "+string(p))
		require.NoError(t, s.Approve(p, t0))
		_, err := s.Advance(t0)
		require.NoError(t, err)
	}
	assert.True(t, s.IsComplete())
	assert.Equal(t, "# design", s.Content.Design)
}

func TestAdvanceRequiresApproval(t *testing.T) {
	s := newState()
	generate(t, s, "reqs")

	_, err := s.Advance(t0)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, PhaseRequirements, s.CurrentPhase)

	require.NoError(t, s.Reject(PhaseRequirements, t0))
	_, err = s.Advance(t0)
	assert.Error(t, err)

	require.NoError(t, s.RequestRefinement(PhaseRequirements, "more detail", t0))
	_, err = s.Advance(t0)
	assert.Error(t, err)
}

func TestApproveRequiresContent(t *testing.T) {
	s := newState()
	assert.Error(t, s.Approve(PhaseRequirements, t0))
}

func TestActionsOnNonCurrentPhaseFail(t *testing.T) {
	s := newState()
	generate(t, s, "reqs")
	assert.Error(t, s.Approve(PhaseDesign, t0))
	assert.Error(t, s.Reject(PhaseTasks, t0))
	assert.Error(t, s.UpdateContent(PhaseComplete, "x", t0))
}

func TestBeginGenerationGuards(t *testing.T) {
	s := newState()
	gen, err := s.BeginGeneration(t0)
	require.NoError(t, err)
	_, err = s.BeginGeneration(t0)
	assert.Error(t, err, "second concurrent generation must be rejected")
	assert.Error(t, s.Approve(PhaseRequirements, t0))

	assert.True(t, s.FailGeneration(gen, t0))
	assert.False(t, s.IsGenerating)

	generate(t, s, "reqs")
	require.NoError(t, s.Approve(PhaseRequirements, t0))
	_, err = s.BeginGeneration(t0)
	assert.Error(t, err, "approved phase must not be regenerated")
}

func TestStaleGenerationCannotTouchNewerRound(t *testing.T) {
	s := newState()
	first, err := s.BeginGeneration(t0)
	require.NoError(t, err)

	s.Reset(t0)
	second, err := s.BeginGeneration(t0)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	assert.ErrorIs(t, s.CompleteGeneration(first, PhaseRequirements, "stale", t0), ErrGenerationSuperseded)
	assert.False(t, s.FailGeneration(first, t0))
	assert.True(t, s.IsGenerating, "the newer round is still in flight")
	assert.Empty(t, s.Content.Requirements)

	require.NoError(t, s.CompleteGeneration(second, PhaseRequirements, "fresh", t0))
	assert.Equal(t, "fresh", s.Content.Requirements)
	assert.False(t, s.IsGenerating)
	assert.ErrorIs(t, s.CompleteGeneration(second, PhaseRequirements, "again", t0), ErrGenerationSuperseded)
}

func TestRefinementStoresFeedbackUntilRegenerated(t *testing.T) {
	s := newState()
	generate(t, s, "v1")
	require.NoError(t, s.RequestRefinement(PhaseRequirements, "  add auth  ", t0))
	assert.Equal(t, ApprovalNeedsRefinement, s.Approvals.Requirements)
	assert.Equal(t, "add auth", s.Feedback.Requirements)

	generate(t, s, "v2")
	assert.Equal(t, ApprovalPending, s.Approvals.Requirements)
	assert.Empty(t, s.Feedback.Requirements)
	assert.Equal(t, "v2", s.Content.Requirements)
}

func TestUpdateContentResetsApproval(t *testing.T) {
	s := newState()
	generate(t, s, "v1")
	require.NoError(t, s.Reject(PhaseRequirements, t0))
	require.NoError(t, s.UpdateContent(PhaseRequirements, "edited", t0))
	assert.Equal(t, ApprovalPending, s.Approvals.Requirements)
	assert.Equal(t, "edited", s.Content.Requirements)
}

func TestResetKeepsPrompt(t *testing.T) {
	s := newState()
	generate(t, s, "v1")
	require.NoError(t, s.Approve(PhaseRequirements, t0))
	_, err := s.Advance(t0)
	require.NoError(t, err)

	later := t0.Add(time.Minute)
	s.Reset(later)
	assert.Equal(t, PhaseRequirements, s.CurrentPhase)
	assert.Empty(t, s.Content.Requirements)
	assert.Equal(t, ApprovalPending, s.Approvals.Requirements)
	assert.Equal(t, "a todo app", s.Prompt)
	assert.Equal(t, later, s.LastUpdated)
}

func TestApprovedContextOnlyIncludesEarlierApprovedPhases(t *testing.T) {
	s := newState()
	generate(t, s, "reqs")
	require.NoError(t, s.Approve(PhaseRequirements, t0))
	_, _ = s.Advance(t0)
	generate(t, s, "design draft")

	ctx := s.ApprovedContext(PhaseTasks)
	assert.Equal(t, map[Phase]string{PhaseRequirements: "reqs"}, ctx)
	assert.Empty(t, s.ApprovedContext(PhaseRequirements))
}

func TestProviderOf(t *testing.T) {
	assert.Equal(t, "anthropic", ProviderOf("anthropic/claude-3.5-sonnet"))
	assert.Equal(t, "", ProviderOf("standalone"))
}
