package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/internal/resilience"
	"eino_dealer_bot/pkg"
)

func newTestRepository(t *testing.T) (*RedisCircuitRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCircuitRepository(client, time.Hour), mr
}

func TestCircuitRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)

	_, ok, err := repo.Get(ctx, "llm")
	require.NoError(t, err)
	assert.False(t, ok)

	opened := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Put(ctx, "llm", pkg.CircuitRecord{State: pkg.CircuitOpen, Failures: 5, OpenedAt: opened}))
	assert.True(t, mr.Exists("circuit:llm"))

	rec, ok, err := repo.Get(ctx, "llm")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pkg.CircuitOpen, rec.State)
	assert.Equal(t, 5, rec.Failures)
	assert.True(t, opened.Equal(rec.OpenedAt))
}

func TestCircuitRepositoryRefreshesTTLOnWrite(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)

	require.NoError(t, repo.Put(ctx, "inventory", pkg.CircuitRecord{State: pkg.CircuitClosed, Failures: 1}))
	mr.FastForward(40 * time.Minute)
	assert.Equal(t, 20*time.Minute, mr.TTL("circuit:inventory"))

	require.NoError(t, repo.Put(ctx, "inventory", pkg.CircuitRecord{State: pkg.CircuitClosed, Failures: 2}))
	assert.Equal(t, time.Hour, mr.TTL("circuit:inventory"))
}

func TestCircuitRepositoryStoreError(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepository(t)
	mr.Close()

	_, _, err := repo.Get(ctx, "llm")
	var storeErr *pkg.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "circuit:llm", storeErr.Key)

	err = repo.Put(ctx, "llm", pkg.CircuitRecord{})
	assert.ErrorAs(t, err, &storeErr)
}

func TestBreakerOverRedis(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	b := resilience.NewBreaker(repo, resilience.WithSettings("svc", resilience.Settings{
		FailureThreshold: 2, SuccessThreshold: 2, ResetTimeout: time.Minute,
	}))

	b.Failure(ctx, "svc")
	b.Failure(ctx, "svc")

	// a second breaker on the same store sees the open circuit
	other := resilience.NewBreaker(repo, resilience.WithSettings("svc", resilience.Settings{
		FailureThreshold: 2, SuccessThreshold: 2, ResetTimeout: time.Minute,
	}))
	var open *pkg.CircuitOpenError
	assert.ErrorAs(t, other.Check(ctx, "svc"), &open)
}
