package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openspec-api/internal/config"
	"openspec-api/internal/domain/entity"
	"openspec-api/internal/domain/repository"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRateLimiterFixedWindow(t *testing.T) {
	client, mr := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Equal(t, 3, d.Limit)
	}

	d, err := limiter.Allow(ctx, "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.WithinDuration(t, time.Now().Add(time.Minute), d.ResetAt, 2*time.Second)

	other, err := limiter.Allow(ctx, "10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	mr.FastForward(time.Minute + time.Second)
	d, err = limiter.Allow(ctx, "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestRateLimiterReset(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "ip", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "ip"))

	d, err := limiter.Allow(ctx, "ip", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestWorkflowStoreRoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWorkflowStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrWorkflowNotFound)

	state := entity.NewSpecWorkflowState("wf-1", "todo app", "openai/gpt-4o", nil, time.Now())
	require.NoError(t, store.Save(ctx, state))
	assert.True(t, mr.Exists("openspec-workflow-state:wf-1"))
	assert.Equal(t, time.Hour, mr.TTL("openspec-workflow-state:wf-1"))

	got, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "todo app", got.Prompt)
	assert.Equal(t, entity.PhaseRequirements, got.CurrentPhase)

	require.NoError(t, store.Delete(ctx, "wf-1"))
	assert.ErrorIs(t, store.Delete(ctx, "wf-1"), repository.ErrWorkflowNotFound)
}

func TestCacheMissAndHit(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client)
	ctx := context.Background()

	_, err := cache.Get(ctx, "models")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "models", []byte(`[1]`), time.Minute))
	assert.True(t, mr.Exists("openspec-cache:models"))
	got, err := cache.Get(ctx, "models")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[1]`), got)

	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, "models")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, cache.Delete(ctx, "a", "absent"))
	assert.False(t, mr.Exists("openspec-cache:a"))
	require.NoError(t, cache.Delete(ctx))
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	_, err = NewClient(context.Background(), &config.RedisConfig{Host: "127.0.0.1", Port: port, DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestHealthCheck(t *testing.T) {
	client, mr := newTestClient(t)
	require.NoError(t, client.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, client.HealthCheck(context.Background()))
}
