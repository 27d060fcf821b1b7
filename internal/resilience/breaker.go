// Package resilience guards calls to external dependencies with a persisted
// circuit breaker and an exponential backoff retrier.
package resilience

import (
	"context"
	"sync"
	"time"

	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/logger"
)

// Settings are the thresholds of one dependency's breaker
type Settings struct {
	FailureThreshold int
	SuccessThreshold int
	ResetTimeout     time.Duration
}

// Repository persists circuit records by dependency name
type Repository interface {
	Get(ctx context.Context, name string) (pkg.CircuitRecord, bool, error)
	Put(ctx context.Context, name string, rec pkg.CircuitRecord) error
}

// ----------------------------------------------------
// ================ Transitions ================

// Allow decides whether a call may go through. An OPEN circuit whose reset
// timeout elapsed moves to HALF_OPEN and lets this call through; otherwise it
// rejects and reports how long until the timeout.
func Allow(rec pkg.CircuitRecord, s Settings, now time.Time) (next pkg.CircuitRecord, allowed bool, retryIn time.Duration) {
	rec = normalize(rec)
	if rec.State != pkg.CircuitOpen {
		return rec, true, 0
	}

	elapsed := now.Sub(rec.OpenedAt)
	if elapsed >= s.ResetTimeout {
		rec.State = pkg.CircuitHalfOpen
		rec.Successes = 0
		return rec, true, 0
	}
	return rec, false, s.ResetTimeout - elapsed
}

// RecordSuccess applies a successful call. In CLOSED the failure count
// decays by one; in HALF_OPEN enough successes close the circuit.
func RecordSuccess(rec pkg.CircuitRecord, s Settings) pkg.CircuitRecord {
	rec = normalize(rec)
	switch rec.State {
	case pkg.CircuitHalfOpen:
		rec.Successes++
		if rec.Successes >= s.SuccessThreshold {
			return pkg.CircuitRecord{State: pkg.CircuitClosed}
		}
	case pkg.CircuitClosed:
		if rec.Failures > 0 {
			rec.Failures--
		}
	}
	return rec
}

// RecordFailure applies a failed call. Reaching the threshold in CLOSED, or
// any failure in HALF_OPEN, opens the circuit with a fresh OpenedAt.
func RecordFailure(rec pkg.CircuitRecord, s Settings, now time.Time) pkg.CircuitRecord {
	rec = normalize(rec)
	rec.LastFailure = now
	switch rec.State {
	case pkg.CircuitHalfOpen:
		rec.State = pkg.CircuitOpen
		rec.OpenedAt = now
		rec.Successes = 0
	case pkg.CircuitClosed:
		rec.Failures++
		if rec.Failures >= s.FailureThreshold {
			rec.State = pkg.CircuitOpen
			rec.OpenedAt = now
		}
	}
	return rec
}

func normalize(rec pkg.CircuitRecord) pkg.CircuitRecord {
	if rec.State == "" {
		rec.State = pkg.CircuitClosed
	}
	return rec
}

// ----------------------------------------------------
// ================ Breaker ================

// Breaker binds the transitions to a repository, one record per dependency
type Breaker struct {
	repo     Repository
	settings map[string]Settings
	defaults Settings
	now      func() time.Time
}

// BreakerOption customizes a Breaker
type BreakerOption func(*Breaker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithSettings registers the thresholds of one dependency
func WithSettings(name string, s Settings) BreakerOption {
	return func(b *Breaker) { b.settings[name] = s }
}

// NewBreaker builds a breaker. Dependencies without registered settings use
// the llm preset.
func NewBreaker(repo Repository, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		repo:     repo,
		settings: make(map[string]Settings),
		defaults: LLM.Breaker,
		now:      time.Now,
	}
	for _, p := range Presets() {
		b.settings[p.Name] = p.Breaker
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Check returns *pkg.CircuitOpenError when the call must be rejected
func (b *Breaker) Check(ctx context.Context, name string) error {
	rec := b.load(ctx, name)
	next, allowed, retryIn := Allow(rec, b.settingsFor(name), b.now())
	if next.State != rec.State {
		log := logger.ForDependency(name)
		log.Info().Str("state", string(next.State)).Msg("Circuit moved to half-open")
		b.save(ctx, name, next)
	}
	if !allowed {
		return &pkg.CircuitOpenError{Name: name, RetryIn: retryIn}
	}
	return nil
}

// Success records a successful call
func (b *Breaker) Success(ctx context.Context, name string) {
	rec := b.load(ctx, name)
	next := RecordSuccess(rec, b.settingsFor(name))
	if next.State != rec.State {
		log := logger.ForDependency(name)
		log.Info().Str("state", string(next.State)).Msg("Circuit closed")
	}
	b.save(ctx, name, next)
}

// Failure records a failed call
func (b *Breaker) Failure(ctx context.Context, name string) {
	rec := b.load(ctx, name)
	next := RecordFailure(rec, b.settingsFor(name), b.now())
	if next.State == pkg.CircuitOpen && rec.State != pkg.CircuitOpen {
		log := logger.ForDependency(name)
		log.Warn().Int("failures", next.Failures).Msg("Circuit opened")
	}
	b.save(ctx, name, next)
}

// Record returns the current record of a dependency
func (b *Breaker) Record(ctx context.Context, name string) pkg.CircuitRecord {
	return b.load(ctx, name)
}

func (b *Breaker) settingsFor(name string) Settings {
	if s, ok := b.settings[name]; ok {
		return s
	}
	return b.defaults
}

// load absorbs repository errors, an unreadable record counts as CLOSED
func (b *Breaker) load(ctx context.Context, name string) pkg.CircuitRecord {
	rec, ok, err := b.repo.Get(ctx, name)
	if err != nil {
		log := logger.ForDependency(name)
		log.Warn().Err(err).Msg("Failed to load circuit state, assuming closed")
		return pkg.CircuitRecord{State: pkg.CircuitClosed}
	}
	if !ok {
		return pkg.CircuitRecord{State: pkg.CircuitClosed}
	}
	return normalize(rec)
}

func (b *Breaker) save(ctx context.Context, name string, rec pkg.CircuitRecord) {
	if err := b.repo.Put(ctx, name, rec); err != nil {
		log := logger.ForDependency(name)
		log.Warn().Err(err).Msg("Failed to save circuit state")
	}
}

// WithCircuitBreaker runs fn when the circuit allows it and records the
// outcome. A rejected or failed call goes to fallback when one is given;
// otherwise the rejection or the original error is returned.
func WithCircuitBreaker[T any](ctx context.Context, b *Breaker, name string, fn func(context.Context) (T, error), fallback func(context.Context, error) (T, error)) (T, error) {
	if err := b.Check(ctx, name); err != nil {
		if fallback != nil {
			return fallback(ctx, err)
		}
		var zero T
		return zero, err
	}

	result, err := fn(ctx)
	if err != nil {
		b.Failure(ctx, name)
		if fallback != nil {
			return fallback(ctx, err)
		}
		return result, err
	}

	b.Success(ctx, name)
	return result, nil
}

// ----------------------------------------------------
// ================ Memory repository ================

// MemoryRepository keeps circuit records in process memory
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]pkg.CircuitRecord
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]pkg.CircuitRecord)}
}

// Get returns the stored record
func (r *MemoryRepository) Get(_ context.Context, name string) (pkg.CircuitRecord, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok, nil
}

// Put stores the record
func (r *MemoryRepository) Put(_ context.Context, name string, rec pkg.CircuitRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[name] = rec
	return nil
}
