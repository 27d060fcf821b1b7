package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"eino_dealer_bot/internal/textsim"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/logger"
	"eino_dealer_bot/src/model"
)

// ResponseHistory keeps the last delivered responses per user, newest first
type ResponseHistory interface {
	Recent(ctx context.Context, userID string) ([]pkg.ResponseRecord, error)
	Append(ctx context.Context, userID string, rec pkg.ResponseRecord) error
}

// NewResponseRecord builds the record of a delivered response
func NewResponseRecord(text string, at time.Time) pkg.ResponseRecord {
	return pkg.ResponseRecord{Hash: textsim.Hash(text), Text: text, At: at}
}

// RedisResponseHistory stores records in a capped list at responses:{user_id}
type RedisResponseHistory struct {
	client *redis.Client
	size   int
	ttl    time.Duration
}

// NewRedisResponseHistory creates the history, size caps the list length
func NewRedisResponseHistory(client *redis.Client, size int, ttl time.Duration) *RedisResponseHistory {
	if size <= 0 {
		size = 5
	}
	return &RedisResponseHistory{client: client, size: size, ttl: ttl}
}

func (h *RedisResponseHistory) key(userID string) string {
	return model.ResponsesKeyPrefix + userID
}

// Recent returns up to size records, newest first. Undecodable entries are
// skipped.
func (h *RedisResponseHistory) Recent(ctx context.Context, userID string) ([]pkg.ResponseRecord, error) {
	raw, err := h.client.LRange(ctx, h.key(userID), 0, int64(h.size-1)).Result()
	if err != nil {
		return nil, &pkg.StoreError{Op: "lrange", Key: h.key(userID), Err: err}
	}

	records := make([]pkg.ResponseRecord, 0, len(raw))
	for _, item := range raw {
		var rec pkg.ResponseRecord
		if err := sonic.UnmarshalString(item, &rec); err != nil {
			logger.Debug().Err(err).Str("user_id", userID).Msg("Skipping undecodable response record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Append pushes rec, evicts the oldest beyond size and refreshes the TTL
func (h *RedisResponseHistory) Append(ctx context.Context, userID string, rec pkg.ResponseRecord) error {
	data, err := sonic.MarshalString(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal response record: %w", err)
	}

	key := h.key(userID)
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(h.size-1))
		if h.ttl > 0 {
			pipe.Expire(ctx, key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return &pkg.StoreError{Op: "lpush", Key: key, Err: err}
	}
	return nil
}

// MemoryResponseHistory is an in-memory ResponseHistory
type MemoryResponseHistory struct {
	mu      sync.Mutex
	size    int
	records map[string][]pkg.ResponseRecord
}

// NewMemoryResponseHistory creates an empty history capped at size
func NewMemoryResponseHistory(size int) *MemoryResponseHistory {
	if size <= 0 {
		size = 5
	}
	return &MemoryResponseHistory{size: size, records: make(map[string][]pkg.ResponseRecord)}
}

func (h *MemoryResponseHistory) Recent(_ context.Context, userID string) ([]pkg.ResponseRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pkg.ResponseRecord{}, h.records[userID]...), nil
}

func (h *MemoryResponseHistory) Append(_ context.Context, userID string, rec pkg.ResponseRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	records := append([]pkg.ResponseRecord{rec}, h.records[userID]...)
	if len(records) > h.size {
		records = records[:h.size]
	}
	h.records[userID] = records
	return nil
}
