package resilience

import "context"

// Guard pairs the breaker with the retrier of one dependency
type Guard struct {
	Name    string
	Breaker *Breaker
	Retrier *Retrier
}

// NewGuard builds the guard of a preset on a shared breaker
func NewGuard(b *Breaker, p Preset, opts ...RetrierOption) *Guard {
	return &Guard{Name: p.Name, Breaker: b, Retrier: NewRetrier(p.Retry, opts...)}
}

// Do runs fn through the breaker, retrying inside a single breaker call so a
// whole retry sequence counts as one success or failure
func Do[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	return WithCircuitBreaker(ctx, g.Breaker, g.Name, func(ctx context.Context) (T, error) {
		return Retry(ctx, g.Retrier, g.Name, fn)
	}, nil)
}
