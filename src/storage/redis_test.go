package storage

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStorage(t *testing.T, ttl time.Duration) (*RedisStorage[record], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStorage[record](client, "rec:", ttl), mr
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t, time.Hour)

	require.NoError(t, s.Set(ctx, "u1", record{Name: "ana", Count: 2}))
	assert.True(t, mr.Exists("rec:u1"))
	assert.Equal(t, time.Hour, mr.TTL("rec:u1"))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, record{Name: "ana", Count: 2}, got)
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStorage(t, time.Hour)

	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetAndTouch(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAndTouchRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t, time.Hour)

	require.NoError(t, s.Set(ctx, "u1", record{Name: "ana"}))
	mr.FastForward(50 * time.Minute)
	assert.Equal(t, 10*time.Minute, mr.TTL("rec:u1"))

	_, err := s.GetAndTouch(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("rec:u1"))
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t, time.Minute)

	require.NoError(t, s.Set(ctx, "u1", record{Name: "ana"}))
	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t, time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, id, record{Name: id}))
	}
	require.NoError(t, mr.Set("other:x", "1"))

	var ids []string
	require.NoError(t, s.Scan(ctx, func(id string) error {
		ids = append(ids, id)
		return nil
	}))
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestCorruptValue(t *testing.T) {
	s, mr := newTestStorage(t, time.Hour)
	require.NoError(t, mr.Set("rec:u1", "{not json"))

	_, err := s.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "")
	assert.Error(t, err)

	_, err = NewRedisClient(context.Background(), "://bad")
	assert.Error(t, err)
}
