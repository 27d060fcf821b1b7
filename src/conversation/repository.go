package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/model"
	"eino_dealer_bot/src/storage"
)

// ConversationHistory is the stored transcript of one user
type ConversationHistory struct {
	Messages []*schema.Message `json:"messages"`
}

// Repository stores transcripts trimmed to the most recent messages
type Repository interface {
	Load(ctx context.Context, userID string) (*ConversationHistory, error)
	AddMessages(ctx context.Context, userID string, messages ...*schema.Message) error
	GetContextForModel(ctx context.Context, userID string, strategy ContextStrategy) ([]*schema.Message, error)
}

type RedisRepository struct {
	transcripts *storage.RedisStorage[ConversationHistory]
	maxMessages int
}

// NewRedisRepository keeps at most maxMessages per user under
// transcript:{user_id}, with a sliding ttl
func NewRedisRepository(client *redis.Client, ttl time.Duration, maxMessages int) *RedisRepository {
	return &RedisRepository{
		transcripts: storage.NewRedisStorage[ConversationHistory](client, model.TranscriptKeyPrefix, ttl),
		maxMessages: maxMessages,
	}
}

func (r *RedisRepository) Load(ctx context.Context, userID string) (*ConversationHistory, error) {
	history, err := r.transcripts.GetAndTouch(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &ConversationHistory{Messages: []*schema.Message{}}, nil
		}
		return nil, &pkg.StoreError{Op: "get", Key: r.transcripts.Key(userID), Err: err}
	}
	return &history, nil
}

func (r *RedisRepository) AddMessages(ctx context.Context, userID string, messages ...*schema.Message) error {
	history, err := r.Load(ctx, userID)
	if err != nil {
		return err
	}

	history.Messages = trimTail(append(history.Messages, messages...), r.maxMessages)
	if err := r.transcripts.Set(ctx, userID, *history); err != nil {
		return &pkg.StoreError{Op: "set", Key: r.transcripts.Key(userID), Err: err}
	}
	return nil
}

func (r *RedisRepository) GetContextForModel(ctx context.Context, userID string, strategy ContextStrategy) ([]*schema.Message, error) {
	history, err := r.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return strategy.Select(history.Messages), nil
}

// MemoryRepository is an in-memory transcript Repository
type MemoryRepository struct {
	mu          sync.Mutex
	maxMessages int
	histories   map[string][]*schema.Message
}

func NewMemoryRepository(maxMessages int) *MemoryRepository {
	return &MemoryRepository{maxMessages: maxMessages, histories: make(map[string][]*schema.Message)}
}

func (m *MemoryRepository) Load(_ context.Context, userID string) (*ConversationHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &ConversationHistory{Messages: append([]*schema.Message{}, m.histories[userID]...)}, nil
}

func (m *MemoryRepository) AddMessages(_ context.Context, userID string, messages ...*schema.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[userID] = trimTail(append(m.histories[userID], messages...), m.maxMessages)
	return nil
}

func (m *MemoryRepository) GetContextForModel(ctx context.Context, userID string, strategy ContextStrategy) ([]*schema.Message, error) {
	history, err := m.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return strategy.Select(history.Messages), nil
}
