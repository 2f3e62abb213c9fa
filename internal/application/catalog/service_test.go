package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
	"openspec-api/internal/infrastructure/persistence/memory"
	apperrors "openspec-api/pkg/errors"
)

var fixtureModels = []entity.OpenRouterModel{
	{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "anthropic", ContextLength: 200000,
		Pricing: entity.ModelPricing{Prompt: 0.000003, Completion: 0.000015}},
	{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "openai", ContextLength: 128000,
		Pricing: entity.ModelPricing{Prompt: 0.0000025, Completion: 0.00001}, Description: "Omni model"},
	{ID: "meta-llama/llama-3-8b:free", Name: "Llama 3 8B (free)", Provider: "meta-llama", ContextLength: 8192},
}

type fakeLister struct {
	calls int32
	delay time.Duration
	err   error
}

func (f *fakeLister) ListModels(ctx context.Context, _ string) ([]entity.OpenRouterModel, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.OpenRouterModel, len(fixtureModels))
	copy(out, fixtureModels)
	return out, nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failingCache) Delete(context.Context, ...string) error { return nil }

func TestAllCachesCatalog(t *testing.T) {
	lister := &fakeLister{}
	svc := NewService(lister, memory.NewCache(time.Minute, time.Minute), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		models, err := svc.All(ctx, "")
		require.NoError(t, err)
		assert.Len(t, models, 3)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))

	require.NoError(t, svc.Invalidate(ctx))
	_, err := svc.All(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.calls))
}

func TestAllCollapsesConcurrentMisses(t *testing.T) {
	lister := &fakeLister{delay: 50 * time.Millisecond}
	svc := NewService(lister, memory.NewCache(time.Minute, time.Minute), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.All(context.Background(), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))
}

func TestSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	lister := &fakeLister{delay: 200 * time.Millisecond}
	svc := NewService(lister, memory.NewCache(time.Minute, time.Minute), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.All(ctx, "")
		first <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&lister.calls) == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		models, err := svc.All(context.Background(), "")
		if err == nil && len(models) != 3 {
			err = errors.New("unexpected catalog size")
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-first, context.Canceled)
	require.NoError(t, <-second)

	_, err := svc.All(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls), "result of the shared load is cached")
}

func TestCacheFailuresAreSwallowed(t *testing.T) {
	lister := &fakeLister{}
	svc := NewService(lister, failingCache{}, time.Minute)

	models, err := svc.All(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, models, 3)
}

func TestUpstreamErrorPropagates(t *testing.T) {
	lister := &fakeLister{err: apperrors.New(apperrors.CodeNetworkError, "down")}
	svc := NewService(lister, nil, 0)

	_, err := svc.All(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNetworkError))
}

func TestVariablePricingIsNeverFree(t *testing.T) {
	models := append([]entity.OpenRouterModel{
		{ID: "openrouter/auto", Name: "Auto Router", Provider: "openrouter", ContextLength: 2000000,
			Pricing: entity.ModelPricing{Variable: true}},
	}, fixtureModels...)

	free := Filter(models, Query{FreeOnly: true})
	require.Len(t, free, 1)
	assert.Equal(t, "meta-llama/llama-3-8b:free", free[0].ID)

	for _, order := range []repository.SortOrder{repository.SortOrderAsc, repository.SortOrderDesc} {
		sorted := Filter(models, Query{})
		SortModels(sorted, SortByPrice, order)
		assert.Equal(t, "openrouter/auto", sorted[len(sorted)-1].ID, "variable pricing sorts last (%s)", order)
	}

	sorted := Filter(models, Query{})
	SortModels(sorted, SortByPrice, repository.SortOrderAsc)
	assert.Equal(t, "meta-llama/llama-3-8b:free", sorted[0].ID)
}

func TestListFiltersSortsAndPages(t *testing.T) {
	svc := NewService(&fakeLister{}, nil, 0)
	ctx := context.Background()

	res, err := svc.List(ctx, "", Query{FreeOnly: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "meta-llama/llama-3-8b:free", res.Items[0].ID)

	res, err = svc.List(ctx, "", Query{MinContext: 100000, Sort: SortByContext, Order: repository.SortOrderDesc})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", res.Items[0].ID)

	res, err = svc.List(ctx, "", Query{Search: "OMNI"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "openai/gpt-4o", res.Items[0].ID)

	res, err = svc.List(ctx, "", Query{Provider: "Anthropic"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	res, err = svc.List(ctx, "", Query{Sort: SortByPrice, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "meta-llama/llama-3-8b:free", res.Items[0].ID)
	assert.Equal(t, "openai/gpt-4o", res.Items[1].ID)
}

func TestGetModel(t *testing.T) {
	svc := NewService(&fakeLister{}, nil, 0)

	m, err := svc.Get(context.Background(), "", "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "GPT-4o", m.Name)

	_, err = svc.Get(context.Background(), "", "nope/nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelNotFound))
}

func TestParseSortField(t *testing.T) {
	assert.Equal(t, SortByPrice, ParseSortField("PRICE"))
	assert.Equal(t, SortByContext, ParseSortField("context"))
	assert.Equal(t, SortByName, ParseSortField("bogus"))
}
