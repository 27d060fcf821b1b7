package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"eino_dealer_bot/internal/resilience"
)

// MessageBus delivers final text to a customer. Implementations own their
// retry policy.
type MessageBus interface {
	Send(ctx context.Context, to, text string) error
}

// ConsoleBus prints outbound messages, used by the chat command
type ConsoleBus struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleBus(out io.Writer) *ConsoleBus {
	return &ConsoleBus{out: out}
}

func (b *ConsoleBus) Send(_ context.Context, to, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := fmt.Fprintf(b.out, "[bot -> %s] %s\n", to, text)
	return err
}

// BreakerBus stops handing messages to a failing gateway while its circuit
// is open. Sends are not retried here.
type BreakerBus struct {
	inner   MessageBus
	breaker *resilience.Breaker
}

func NewBreakerBus(inner MessageBus, breaker *resilience.Breaker) *BreakerBus {
	return &BreakerBus{inner: inner, breaker: breaker}
}

func (b *BreakerBus) Send(ctx context.Context, to, text string) error {
	_, err := resilience.WithCircuitBreaker(ctx, b.breaker, resilience.DependencyMessaging, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.inner.Send(ctx, to, text)
	}, nil)
	return err
}
