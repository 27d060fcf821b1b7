package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/model"
	"eino_dealer_bot/src/storage"
)

// ContextStore persists one TurnSummary per user. Get and Peek return nil
// without error when the user has no stored state. Get refreshes the expiry,
// Peek leaves it alone.
type ContextStore interface {
	Get(ctx context.Context, userID string) (*pkg.TurnSummary, error)
	Peek(ctx context.Context, userID string) (*pkg.TurnSummary, error)
	Set(ctx context.Context, userID string, summary *pkg.TurnSummary) error
	Scan(ctx context.Context, fn func(userID string) error) error
}

// RedisContextStore keeps summaries under turn_summary:{user_id} with a
// sliding TTL refreshed on Get and Set
type RedisContextStore struct {
	summaries *storage.RedisStorage[pkg.TurnSummary]
}

// NewRedisContextStore creates the store on an existing client
func NewRedisContextStore(client *redis.Client, ttl time.Duration) *RedisContextStore {
	return &RedisContextStore{
		summaries: storage.NewRedisStorage[pkg.TurnSummary](client, model.SummaryKeyPrefix, ttl),
	}
}

func (s *RedisContextStore) Get(ctx context.Context, userID string) (*pkg.TurnSummary, error) {
	summary, err := s.summaries.GetAndTouch(ctx, userID)
	return s.found(summary, err, "get", userID)
}

func (s *RedisContextStore) Peek(ctx context.Context, userID string) (*pkg.TurnSummary, error) {
	summary, err := s.summaries.Get(ctx, userID)
	return s.found(summary, err, "peek", userID)
}

func (s *RedisContextStore) found(summary pkg.TurnSummary, err error, op, userID string) (*pkg.TurnSummary, error) {
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, &pkg.StoreError{Op: op, Key: s.summaries.Key(userID), Err: err}
	}
	return &summary, nil
}

func (s *RedisContextStore) Set(ctx context.Context, userID string, summary *pkg.TurnSummary) error {
	if err := s.summaries.Set(ctx, userID, *summary); err != nil {
		return &pkg.StoreError{Op: "set", Key: s.summaries.Key(userID), Err: err}
	}
	return nil
}

func (s *RedisContextStore) Scan(ctx context.Context, fn func(userID string) error) error {
	if err := s.summaries.Scan(ctx, fn); err != nil {
		return &pkg.StoreError{Op: "scan", Key: model.SummaryKeyPrefix + "*", Err: err}
	}
	return nil
}

// MemoryContextStore is an in-memory ContextStore for development and tests
type MemoryContextStore struct {
	mu        sync.RWMutex
	summaries map[string]pkg.TurnSummary
}

// NewMemoryContextStore creates an empty store
func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{summaries: make(map[string]pkg.TurnSummary)}
}

func (m *MemoryContextStore) Get(_ context.Context, userID string) (*pkg.TurnSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary, ok := m.summaries[userID]
	if !ok {
		return nil, nil
	}
	return cloneSummary(&summary), nil
}

// Peek is Get, memory entries never expire
func (m *MemoryContextStore) Peek(ctx context.Context, userID string) (*pkg.TurnSummary, error) {
	return m.Get(ctx, userID)
}

func (m *MemoryContextStore) Set(_ context.Context, userID string, summary *pkg.TurnSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[userID] = *cloneSummary(summary)
	return nil
}

func (m *MemoryContextStore) Scan(_ context.Context, fn func(userID string) error) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.summaries))
	for id := range m.summaries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func cloneSummary(s *pkg.TurnSummary) *pkg.TurnSummary {
	c := *s
	c.SlotsFilled = append([]pkg.Slot{}, s.SlotsFilled...)
	c.AskedSlots = append([]pkg.Slot{}, s.AskedSlots...)
	if s.NameLastUsedTurn != nil {
		turn := *s.NameLastUsedTurn
		c.NameLastUsedTurn = &turn
	}
	return &c
}
