package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/model"
	kv "eino_dealer_bot/src/storage"
)

// RedisCircuitRepository keeps one CircuitRecord per dependency in Redis.
// Every write refreshes the TTL so idle circuits expire back to CLOSED.
type RedisCircuitRepository struct {
	records *kv.RedisStorage[pkg.CircuitRecord]
}

// NewRedisCircuitRepository creates the repository on an existing client
func NewRedisCircuitRepository(client *redis.Client, ttl time.Duration) *RedisCircuitRepository {
	return &RedisCircuitRepository{
		records: kv.NewRedisStorage[pkg.CircuitRecord](client, model.CircuitKeyPrefix, ttl),
	}
}

// Get returns the stored record, ok is false when none exists
func (r *RedisCircuitRepository) Get(ctx context.Context, name string) (pkg.CircuitRecord, bool, error) {
	rec, err := r.records.Get(ctx, name)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return pkg.CircuitRecord{}, false, nil
		}
		return pkg.CircuitRecord{}, false, &pkg.StoreError{Op: "get", Key: r.records.Key(name), Err: err}
	}
	return rec, true, nil
}

// Put stores the record and refreshes its TTL
func (r *RedisCircuitRepository) Put(ctx context.Context, name string, rec pkg.CircuitRecord) error {
	if err := r.records.Set(ctx, name, rec); err != nil {
		return &pkg.StoreError{Op: "set", Key: r.records.Key(name), Err: err}
	}
	return nil
}
