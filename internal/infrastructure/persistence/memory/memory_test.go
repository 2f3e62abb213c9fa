package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	limiter := NewRateLimiter(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 60; i++ {
		d, err := limiter.Allow(ctx, "1.2.3.4", 60, time.Minute)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 60-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "1.2.3.4", 60, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, now.Add(time.Minute), d.ResetAt)

	// 窗口内时间推进不会重置
	now = now.Add(59 * time.Second)
	d, _ = limiter.Allow(ctx, "1.2.3.4", 60, time.Minute)
	assert.False(t, d.Allowed)

	now = now.Add(time.Second)
	d, _ = limiter.Allow(ctx, "1.2.3.4", 60, time.Minute)
	assert.True(t, d.Allowed)
	assert.Equal(t, 59, d.Remaining)
	assert.Equal(t, now.Add(time.Minute), d.ResetAt)
}

func TestRateLimiterConcurrent(t *testing.T) {
	limiter := NewRateLimiter(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(ctx, "k", 10, time.Minute)
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)

	limiter.Reset("k")
	d, _ := limiter.Allow(ctx, "k", 10, time.Minute)
	assert.True(t, d.Allowed)
}

func TestWorkflowStoreIsolatesCopies(t *testing.T) {
	store := NewWorkflowStore(0)
	ctx := context.Background()

	state := entity.NewSpecWorkflowState("wf", "prompt", "m", nil, time.Now())
	require.NoError(t, store.Save(ctx, state))

	state.Prompt = "mutated"
	got, err := store.Get(ctx, "wf")
	require.NoError(t, err)
	assert.Equal(t, "prompt", got.Prompt)

	require.NoError(t, store.Delete(ctx, "wf"))
	_, err = store.Get(ctx, "wf")
	assert.ErrorIs(t, err, repository.ErrWorkflowNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "wf"), repository.ErrWorkflowNotFound)
}

func TestCache(t *testing.T) {
	c := NewCache(time.Minute, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "a", []byte("x"), 0))
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}
