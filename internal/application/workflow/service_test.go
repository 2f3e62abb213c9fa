package workflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openspec-api/internal/application/contextfile"
	"openspec-api/internal/config"
	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
	"openspec-api/internal/infrastructure/persistence/memory"
	redisstore "openspec-api/internal/infrastructure/persistence/redis"
	"openspec-api/internal/workflow/prompt"
	apperrors "openspec-api/pkg/errors"
	"openspec-api/pkg/logger"
)

type fakeGenerator struct {
	mu       sync.Mutex
	requests []*entity.GenerationRequest
	err      error
	// block 非空时生成会等待该通道关闭
	block   chan struct{}
	started chan struct{}
}

func (g *fakeGenerator) Generate(_ context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	block, started, err := g.block, g.started, g.err
	g.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &entity.GenerationResult{Content: "generated:" + req.UserPrompt[:10], Model: req.Model}, nil
}

func (g *fakeGenerator) last() *entity.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type fakeArchive struct {
	saved []*entity.SpecDocument
	err   error
}

func (a *fakeArchive) Save(_ context.Context, doc *entity.SpecDocument) error {
	a.saved = append(a.saved, doc)
	return a.err
}

func (a *fakeArchive) GetByWorkflowID(context.Context, string) (*entity.SpecDocument, error) {
	return nil, nil
}

func (a *fakeArchive) List(context.Context, repository.Pagination) (*repository.PagedResult[*entity.SpecDocument], error) {
	return nil, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*entity.WorkflowEvent
	err    error
}

func (e *fakeEvents) PublishWorkflowEvent(_ context.Context, evt *entity.WorkflowEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	return e.err
}

func (e *fakeEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Type)
	}
	return out
}

type fixture struct {
	svc     *Service
	gen     *fakeGenerator
	archive *fakeArchive
	events  *fakeEvents
}

// cancelOnGenerate 生成期间模拟客户端断开；succeed 为真时仍返回结果
type cancelOnGenerate struct {
	cancel  context.CancelFunc
	succeed bool
}

func (g *cancelOnGenerate) Generate(ctx context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error) {
	g.cancel()
	if !g.succeed {
		return nil, ctx.Err()
	}
	return &entity.GenerationResult{Content: "# Requirements", Model: req.Model}, nil
}

// gatedGenerator 第 i 次调用通过 started 报到，并等待 release[i] 给出内容
type gatedGenerator struct {
	mu      sync.Mutex
	calls   int
	started chan int
	release []chan string
}

func newGatedGenerator(n int) *gatedGenerator {
	g := &gatedGenerator{started: make(chan int, n)}
	for range n {
		g.release = append(g.release, make(chan string))
	}
	return g
}

func (g *gatedGenerator) Generate(_ context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error) {
	g.mu.Lock()
	idx := g.calls
	g.calls++
	g.mu.Unlock()

	g.started <- idx
	return &entity.GenerationResult{Content: <-g.release[idx], Model: req.Model}, nil
}

func newRedisStore(t *testing.T) repository.WorkflowStore {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := redisstore.NewClient(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.NewWorkflowStore(client, 0)
}

func newServiceWith(store repository.WorkflowStore, gen Generator) *Service {
	return NewService(store, gen, prompt.NewRegistry(),
		contextfile.NewValidator(config.ContextFilesConfig{}),
		WithDefaultModel("openai/gpt-4o"),
	)
}

func newFixture() *fixture {
	f := &fixture{gen: &fakeGenerator{}, archive: &fakeArchive{}, events: &fakeEvents{}}
	f.svc = NewService(
		memory.NewWorkflowStore(0),
		f.gen,
		prompt.NewRegistry(),
		contextfile.NewValidator(config.ContextFilesConfig{}),
		WithArchive(f.archive),
		WithEvents(f.events),
		WithDefaultModel("openai/gpt-4o"),
	)
	return f
}

func (f *fixture) create(t *testing.T) *entity.SpecWorkflowState {
	t.Helper()
	state, err := f.svc.Create(context.Background(), CreateInput{Prompt: "a todo app with reminders"})
	require.NoError(t, err)
	return state
}

func TestFullWorkflow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)
	assert.Equal(t, "openai/gpt-4o", state.Model)

	for _, phase := range entity.DocumentPhases {
		st, err := f.svc.Generate(ctx, state.ID, GenerateInput{APIKey: "sk"})
		require.NoError(t, err, phase)
		assert.NotEmpty(t, st.Content.Get(phase))
		assert.False(t, st.IsGenerating)
		assert.Equal(t, "sk", f.gen.last().APIKey)

		_, err = f.svc.Approve(ctx, state.ID, phase)
		require.NoError(t, err)

		st, err = f.svc.Advance(ctx, state.ID)
		require.NoError(t, err)
		next, _ := phase.Next()
		assert.Equal(t, next, st.CurrentPhase)
	}

	// 后续阶段的提示词带入已审批内容
	tasksReq := f.gen.last()
	assert.Contains(t, tasksReq.UserPrompt, "Approved requirements")
	assert.Contains(t, tasksReq.UserPrompt, "Approved design")

	require.Len(t, f.archive.saved, 1)
	assert.Equal(t, state.ID, f.archive.saved[0].WorkflowID)
	assert.Equal(t, []string{
		entity.EventPhaseGenerated, entity.EventPhaseApproved,
		entity.EventPhaseGenerated, entity.EventPhaseApproved,
		entity.EventPhaseGenerated, entity.EventPhaseApproved,
		entity.EventCompleted,
	}, f.events.types())

	_, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	_, err = f.svc.Advance(ctx, state.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	assert.Zero(t, f.svc.locks.size())
}

func TestGenerateRejectsApprovedPhase(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)

	_, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, state.ID, entity.PhaseRequirements)
	require.NoError(t, err)

	_, err = f.svc.Generate(ctx, state.ID, GenerateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestConcurrentGenerateIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)

	f.gen.block = make(chan struct{})
	f.gen.started = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
		done <- err
	}()
	<-f.gen.started

	_, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGenerationInFlight))
	_, err = f.svc.Approve(ctx, state.ID, entity.PhaseRequirements)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGenerationInFlight))

	got, err := f.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.True(t, got.IsGenerating)

	f.gen.mu.Lock()
	f.gen.started = nil
	f.gen.mu.Unlock()
	close(f.gen.block)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not finish")
	}
}

func TestGenerationFailureClearsFlag(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)
	f.gen.err = apperrors.New(apperrors.CodeRateLimited, "slow down")

	_, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRateLimited))

	got, err := f.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.False(t, got.IsGenerating)
	assert.Empty(t, got.Content.Requirements)
	assert.Empty(t, f.events.types())
}

func TestRefinementFeedbackFlowsIntoPrompt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)

	_, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
	require.NoError(t, err)

	_, err = f.svc.RequestRefinement(ctx, state.ID, entity.PhaseRequirements, "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	st, err := f.svc.RequestRefinement(ctx, state.ID, entity.PhaseRequirements, "add offline support")
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalNeedsRefinement, st.Approvals.Requirements)

	st, err = f.svc.Generate(ctx, state.ID, GenerateInput{})
	require.NoError(t, err)
	assert.Contains(t, f.gen.last().UserPrompt, "add offline support")
	assert.Empty(t, st.Feedback.Requirements)
	assert.Equal(t, entity.ApprovalPending, st.Approvals.Requirements)
}

func TestResetDuringGenerationDiscardsResult(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)

	f.gen.block = make(chan struct{})
	f.gen.started = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
		done <- err
	}()
	<-f.gen.started

	_, err := f.svc.Reset(ctx, state.ID)
	require.NoError(t, err)
	close(f.gen.block)

	err = <-done
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	got, err := f.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Content.Requirements)
	assert.False(t, got.IsGenerating)
}

func TestSideEffectFailuresAreSwallowed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.archive.err = errors.New("db down")
	f.events.err = errors.New("redis down")
	state := f.create(t)

	for range entity.DocumentPhases {
		st, err := f.svc.Get(ctx, state.ID)
		require.NoError(t, err)
		_, err = f.svc.Generate(ctx, state.ID, GenerateInput{})
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, state.ID, st.CurrentPhase)
		require.NoError(t, err)
		_, err = f.svc.Advance(ctx, state.ID)
		require.NoError(t, err)
	}

	got, err := f.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete())
	assert.Len(t, f.archive.saved, 1)
}

func TestManualEditAndReject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)

	st, err := f.svc.UpdateContent(ctx, state.ID, entity.PhaseRequirements, "# Hand written")
	require.NoError(t, err)
	assert.Equal(t, "# Hand written", st.Content.Requirements)

	st, err = f.svc.Reject(ctx, state.ID, entity.PhaseRequirements)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalRejected, st.Approvals.Requirements)

	_, err = f.svc.UpdateContent(ctx, state.ID, entity.PhaseDesign, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestNotFoundAndValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeWorkflowNotFound))
	_, err = f.svc.Generate(ctx, "missing", GenerateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeWorkflowNotFound))
	assert.True(t, apperrors.HasCode(f.svc.Delete(ctx, "missing"), apperrors.CodeWorkflowNotFound))

	_, err = f.svc.Create(ctx, CreateInput{Prompt: " "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	state := f.create(t)
	require.NoError(t, f.svc.Delete(ctx, state.ID))
	_, err = f.svc.Get(ctx, state.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeWorkflowNotFound))
}

func TestKeyedMutexSerializes(t *testing.T) {
	km := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, km.size())
}

func TestClientDisconnectDuringGenerationClearsFlag(t *testing.T) {
	store := newRedisStore(t)
	gen := &cancelOnGenerate{}
	svc := newServiceWith(store, gen)

	state, err := svc.Create(context.Background(), CreateInput{Prompt: "a todo app"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	gen.cancel = cancel
	_, err = svc.Generate(ctx, state.ID, GenerateInput{})
	require.ErrorIs(t, err, context.Canceled)

	got, err := svc.Get(context.Background(), state.ID)
	require.NoError(t, err)
	assert.False(t, got.IsGenerating, "cancelled request must not leave the flag behind")

	// 断开后返回的结果同样要落盘
	ctx, cancel = context.WithCancel(context.Background())
	gen.cancel, gen.succeed = cancel, true
	st, err := svc.Generate(ctx, state.ID, GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, "# Requirements", st.Content.Requirements)

	got, err = svc.Get(context.Background(), state.ID)
	require.NoError(t, err)
	assert.False(t, got.IsGenerating)
	assert.Equal(t, "# Requirements", got.Content.Requirements)
}

func TestStaleGenerationAfterResetDoesNotOverwriteNewRound(t *testing.T) {
	gen := newGatedGenerator(2)
	svc := newServiceWith(memory.NewWorkflowStore(0), gen)
	ctx := context.Background()
	state, err := svc.Create(ctx, CreateInput{Prompt: "a todo app"})
	require.NoError(t, err)

	run := func() <-chan error {
		done := make(chan error, 1)
		go func() {
			_, err := svc.Generate(ctx, state.ID, GenerateInput{})
			done <- err
		}()
		return done
	}

	doneA := run()
	require.Equal(t, 0, <-gen.started)
	_, err = svc.Reset(ctx, state.ID)
	require.NoError(t, err)

	doneB := run()
	require.Equal(t, 1, <-gen.started)

	gen.release[0] <- "content-A"
	assert.True(t, apperrors.HasCode(<-doneA, apperrors.CodeConflict))

	got, err := svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.True(t, got.IsGenerating, "the newer round still owns the flag")
	assert.Empty(t, got.Content.Requirements)

	gen.release[1] <- "content-B"
	require.NoError(t, <-doneB)

	got, err = svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.False(t, got.IsGenerating)
	assert.Equal(t, "content-B", got.Content.Requirements)
}

func TestTransitionErrorMessageIsNotRepeated(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	state := f.create(t)

	_, err := f.svc.Approve(ctx, state.ID, entity.PhaseRequirements)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, "cannot approve requirements: no content generated", appErr.Message)
	assert.Equal(t, 1, strings.Count(err.Error(), "no content generated"), err.Error())
}

func TestWorkflowIDLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger.SetDefault(slog.New(logger.NewHandler(&buf, "debug", "json")))
	t.Cleanup(func() { logger.SetDefault(nil) })

	f := newFixture()
	f.archive.err = errors.New("db down")
	f.events.err = errors.New("redis down")
	ctx := context.Background()
	state := f.create(t)

	_, err := f.svc.Approve(ctx, state.ID, entity.PhaseRequirements)
	require.Error(t, err)
	for range entity.DocumentPhases {
		st, err := f.svc.Generate(ctx, state.ID, GenerateInput{})
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, state.ID, st.CurrentPhase)
		require.NoError(t, err)
		_, err = f.svc.Advance(ctx, state.ID)
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.Delete(ctx, state.ID))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, `"workflow_id"`), line)
		assert.Contains(t, line, state.ID)
	}
}
